package webserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/concord-assembly/concord/src/api/apierr"
	"github.com/concord-assembly/concord/src/api/tally"
	"github.com/concord-assembly/concord/src/api/types"
)

type Motions struct{ db *gorm.DB }

func NewMotions(db *gorm.DB) Motions { return Motions{db: db} }

func (m Motions) Create(c *gin.Context) {
	country, err := actingCountry(c, m.db)
	if err != nil {
		abortErr(c, err)
		return
	}

	var req struct {
		Type            string `json:"type" binding:"required,oneof=LOCK_THREAD UNLOCK_THREAD PIN_THREAD UNPIN_THREAD ARCHIVE_THREAD REMOVE_POST RESTORE_POST ISSUE_SANCTION LIFT_SANCTION"`
		Title           string `json:"title" binding:"required,max=255"`
		Description     string `json:"description"`
		Rationale       string `json:"rationale"`
		TargetThreadID  string `json:"targetThreadId"`
		TargetPostID    string `json:"targetPostId"`
		TargetCountryID string `json:"targetCountryId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TargetThreadID != "" {
		var thread types.DiscussionThread
		if err := m.db.First(&thread, "id = ?", req.TargetThreadID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortErr(c, apierr.NotFound("Target thread not found"))
				return
			}
			abortErr(c, err)
			return
		}
	}

	if req.TargetPostID != "" {
		var post types.DiscussionPost
		if err := m.db.First(&post, "id = ?", req.TargetPostID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortErr(c, apierr.NotFound("Target post not found"))
				return
			}
			abortErr(c, err)
			return
		}
		if req.TargetThreadID != "" && post.ThreadID != req.TargetThreadID {
			abortErr(c, apierr.Validation("Target post must belong to the specified thread"))
			return
		}
	}

	if req.TargetCountryID != "" {
		var target types.Country
		if err := m.db.First(&target, "id = ?", req.TargetCountryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortErr(c, apierr.NotFound("Target country not found"))
				return
			}
			abortErr(c, err)
			return
		}
	}

	motion := types.Motion{
		ID:              uuid.NewString(),
		Type:            req.Type,
		Status:          types.MotionProposed,
		Title:           req.Title,
		Description:     req.Description,
		Rationale:       req.Rationale,
		TargetThreadID:  req.TargetThreadID,
		TargetPostID:    req.TargetPostID,
		TargetCountryID: req.TargetCountryID,
		CreatedByCtry:   country.ID,
		SubmittedAt:     time.Now(),
	}
	if err := m.db.Create(&motion).Error; err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"motion": motion})
}

func (m Motions) Get(c *gin.Context) {
	var motion types.Motion
	if err := m.db.First(&motion, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Motion not found"))
			return
		}
		abortErr(c, err)
		return
	}

	var votes []types.ModVote
	if err := m.db.Find(&votes, "motion_id = ?", motion.ID).Error; err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"motion": motion, "tally": tally.CountMotion(votes)})
}

// Second adds the acting country to the motion's seconds; the first second
// moves PROPOSED to VOTING.
func (m Motions) Second(c *gin.Context) {
	country, err := actingCountry(c, m.db)
	if err != nil {
		abortErr(c, err)
		return
	}

	// the context bag is read-modify-write, so the whole second happens
	// inside one transaction
	var motion types.Motion
	err = m.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&motion, "id = ?", c.Param("id")).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.NotFound("Motion not found")
			}
			return err
		}

		if motion.Status != types.MotionProposed && motion.Status != types.MotionVoting {
			return apierr.Conflict("Motion cannot be seconded in its current state")
		}

		ctx := motion.DecodeContext()
		for _, id := range ctx.Seconds {
			if id == country.ID {
				return apierr.Conflict("Country has already seconded this motion")
			}
		}
		ctx.Seconds = append(ctx.Seconds, country.ID)
		motion.SetContext(ctx)

		if motion.Status == types.MotionProposed {
			now := time.Now()
			motion.Status = types.MotionVoting
			motion.OpenedAt = &now
		}

		return tx.Save(&motion).Error
	})
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"motion": motion})
}

// Vote upserts a motion vote; reaching quorum auto-resolves the motion.
func (m Motions) Vote(c *gin.Context) {
	country, err := actingCountry(c, m.db)
	if err != nil {
		abortErr(c, err)
		return
	}

	quorum, err := fetchQuorum(m.db)
	if err != nil {
		abortErr(c, err)
		return
	}

	var req struct {
		Choice  string `json:"choice" binding:"required,oneof=APPROVE REJECT ABSTAIN"`
		Comment string `json:"comment" binding:"max=1024"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var motion types.Motion
	if err := m.db.First(&motion, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Motion not found"))
			return
		}
		abortErr(c, err)
		return
	}
	if motion.Status != types.MotionVoting {
		abortErr(c, apierr.Conflict("Motion is not open for voting"))
		return
	}

	var t tally.MotionTally
	var total int

	err = m.db.Transaction(func(tx *gorm.DB) error {
		vote := types.ModVote{
			MotionID:  motion.ID,
			CountryID: country.ID,
			Choice:    req.Choice,
			Comment:   req.Comment,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "motion_id"}, {Name: "country_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"choice", "comment", "updated_at"}),
		}).Create(&vote).Error
		if err != nil {
			return err
		}

		var votes []types.ModVote
		if err := tx.Find(&votes, "motion_id = ?", motion.ID).Error; err != nil {
			return err
		}
		t = tally.CountMotion(votes)
		total = len(votes)

		if err := tx.First(&motion, "id = ?", motion.ID).Error; err != nil {
			return err
		}

		if motion.Status == types.MotionVoting && total >= quorum.Required {
			passes := t.Approve > t.Reject
			status := types.MotionFailed
			verb := "failed"
			if passes {
				status = types.MotionPassed
				verb = "passed"
			}
			now := time.Now()
			motion.Status = status
			motion.ClosedAt = &now
			motion.ResolvedAt = &now
			motion.ResolutionNote = fmt.Sprintf("Motion %s %d-%d-%d", verb, t.Approve, t.Reject, t.Abstain)
			return tx.Save(&motion).Error
		}
		return nil
	})
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"motion":     motion,
		"tally":      t,
		"totalVotes": total,
		"quorum":     quorum.Required,
	})
}

func (m Motions) Withdraw(c *gin.Context) {
	country, err := actingCountry(c, m.db)
	if err != nil {
		abortErr(c, err)
		return
	}

	// body is optional; a bare withdraw carries no note
	var req struct {
		Note string `json:"note" binding:"max=512"`
	}
	_ = c.ShouldBindJSON(&req)

	var motion types.Motion
	if err := m.db.First(&motion, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Motion not found"))
			return
		}
		abortErr(c, err)
		return
	}

	if motion.CreatedByCtry != country.ID {
		abortErr(c, apierr.Forbidden("Only the proposing country may withdraw the motion"))
		return
	}
	if types.MotionFinal(motion.Status) {
		abortErr(c, apierr.Conflict("Motion is already resolved"))
		return
	}

	now := time.Now()
	motion.Status = types.MotionWithdrawn
	motion.ClosedAt = &now
	motion.ResolvedAt = &now
	motion.ResolutionNote = req.Note

	if err := m.db.Save(&motion).Error; err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"motion": motion})
}
