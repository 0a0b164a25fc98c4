package webserver

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/data"
	"github.com/concord-assembly/concord/src/api/types"
)

// Auth issues session tokens for delegations. Identity proofing happens in
// the surrounding deployment (SSO in front of the portal); this flow only
// binds a short-lived nonce to a country and exchanges it for a JWT.
type Auth struct {
	rdb       *redis.Client
	jwtSecret []byte
	db        *gorm.DB
}

func NewAuth(rdb *redis.Client, secret []byte, db *gorm.DB) Auth {
	return Auth{rdb: rdb, jwtSecret: secret, db: db}
}

func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		CountryID string `json:"countryId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var country types.Country
	if err := a.db.First(&country, "id = ? OR slug = ?", req.CountryID, req.CountryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Country not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	nonce := uuid.NewString()
	if err := data.SetNonce(c, a.rdb, country.ID, nonce); err != nil {
		log.Printf("auth: set nonce for %s: %v", country.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"countryId": country.ID, "nonce": nonce})
}

func (a Auth) Verify(c *gin.Context) {
	var req struct {
		CountryID string `json:"countryId" binding:"required"`
		Nonce     string `json:"nonce" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stored, err := data.GetAndDelNonce(c, a.rdb, req.CountryID)
	if err != nil || stored == "" || stored != req.Nonce {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "challenge failed"})
		return
	}

	token, err := issueToken(a.jwtSecret, req.CountryID)
	if err != nil {
		log.Printf("auth: sign token for %s: %v", req.CountryID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
