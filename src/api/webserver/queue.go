package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/session"
)

// Queue is the HTTP mirror of the speaker queue; the websocket path drives
// the same registry.
type Queue struct {
	db  *gorm.DB
	reg *session.Registry
}

func NewQueue(db *gorm.DB, reg *session.Registry) Queue {
	return Queue{db: db, reg: reg}
}

func (q Queue) Get(c *gin.Context) {
	snap := q.reg.QueueState(c.Param("threadId"))
	c.JSON(http.StatusOK, gin.H{"queue": snap})
}

func (q Queue) Request(c *gin.Context) {
	country, err := actingCountry(c, q.db)
	if err != nil {
		abortErr(c, err)
		return
	}

	var req struct {
		ThreadID string `json:"threadId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := q.reg.QueueRequest(req.ThreadID, country.ID)
	c.JSON(http.StatusOK, gin.H{"queue": snap})
}

func (q Queue) Recognize(c *gin.Context) {
	country, err := actingCountry(c, q.db)
	if err != nil {
		abortErr(c, err)
		return
	}
	if err := requireChair(country); err != nil {
		abortErr(c, err)
		return
	}

	var req struct {
		ThreadID  string `json:"threadId" binding:"required"`
		CountryID string `json:"countryId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := q.reg.QueueRecognize(req.ThreadID, req.CountryID)
	c.JSON(http.StatusOK, gin.H{"queue": snap})
}

func (q Queue) Skip(c *gin.Context) {
	country, err := actingCountry(c, q.db)
	if err != nil {
		abortErr(c, err)
		return
	}
	if err := requireChair(country); err != nil {
		abortErr(c, err)
		return
	}

	var req struct {
		ThreadID  string `json:"threadId" binding:"required"`
		CountryID string `json:"countryId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := q.reg.QueueSkip(req.ThreadID, req.CountryID)
	c.JSON(http.StatusOK, gin.H{"queue": snap})
}
