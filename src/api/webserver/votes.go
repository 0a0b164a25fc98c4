package webserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/concord-assembly/concord/src/api/apierr"
	"github.com/concord-assembly/concord/src/api/resolution"
	"github.com/concord-assembly/concord/src/api/tally"
	"github.com/concord-assembly/concord/src/api/types"
)

type Votes struct{ db *gorm.DB }

func NewVotes(db *gorm.DB) Votes { return Votes{db: db} }

func (v Votes) Cast(c *gin.Context) {
	country, err := actingCountry(c, v.db)
	if err != nil {
		abortErr(c, err)
		return
	}

	var req struct {
		Choice  string `json:"choice" binding:"required,oneof=AYE NAY ABSTAIN ABSENT"`
		Comment string `json:"comment" binding:"max=1024"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var amendment types.Amendment
	if err := v.db.First(&amendment, "slug = ?", c.Param("slug")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Amendment not found"))
			return
		}
		abortErr(c, err)
		return
	}

	// The window check stands on its own: an expired amendment rejects votes
	// even before the close sweep has flipped its status.
	if amendment.Status != types.AmendmentOpen {
		abortErr(c, apierr.Conflict("Voting is closed"))
		return
	}
	now := time.Now()
	if now.Before(amendment.OpensAt) {
		abortErr(c, apierr.Conflict("Voting not open yet"))
		return
	}
	if now.After(amendment.ClosesAt) {
		abortErr(c, apierr.Conflict("Voting period ended"))
		return
	}

	// ABSENT withdraws the delegation's vote rather than recording one
	if req.Choice == types.ChoiceAbsent {
		if err := v.db.Where("amendment_id = ? AND country_id = ?", amendment.ID, country.ID).
			Delete(&types.Vote{}).Error; err != nil {
			abortErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "absent": true})
		return
	}

	vote := types.Vote{
		AmendmentID: amendment.ID,
		CountryID:   country.ID,
		Choice:      req.Choice,
		Comment:     req.Comment,
	}
	err = v.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "amendment_id"}, {Name: "country_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"choice", "comment", "updated_at"}),
	}).Create(&vote).Error
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "vote": vote})
}

func (v Votes) Summary(c *gin.Context) {
	var amendment types.Amendment
	if err := v.db.First(&amendment, "slug = ?", c.Param("slug")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Amendment not found"))
			return
		}
		abortErr(c, err)
		return
	}

	t, err := resolution.LoadTally(v.db, amendment.ID)
	if err != nil {
		abortErr(c, err)
		return
	}

	eligible := amendment.EligibleCount
	absent := eligible - t.Total()
	if absent < 0 {
		absent = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"aye":      t.Aye,
		"nay":      t.Nay,
		"abstain":  t.Abstain,
		"absent":   absent,
		"cast":     t.Total(),
		"eligible": eligible,
		"needed":   tally.Needed(eligible, amendment.Threshold),
	})
}
