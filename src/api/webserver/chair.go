package webserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/apierr"
	"github.com/concord-assembly/concord/src/api/types"
)

// Chair handles privileged rulings and emergency moderation. Everything here
// leaves a ChairActionLog row.
type Chair struct{ db *gorm.DB }

func NewChair(db *gorm.DB) Chair { return Chair{db: db} }

// Rule lets the chair settle a motion directly: pass it, fail it, or mark a
// passed motion executed. An EXECUTED ruling also applies the motion's effect.
func (h Chair) Rule(c *gin.Context) {
	country, err := actingCountry(c, h.db)
	if err != nil {
		abortErr(c, err)
		return
	}
	if err := requireChair(country); err != nil {
		abortErr(c, err)
		return
	}

	var req struct {
		MotionID string `json:"motionId" binding:"required"`
		Outcome  string `json:"outcome" binding:"required,oneof=PASSED FAILED EXECUTED"`
		Note     string `json:"note" binding:"max=512"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var motion types.Motion
	if err := h.db.First(&motion, "id = ?", req.MotionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Motion not found"))
			return
		}
		abortErr(c, err)
		return
	}
	// the one legitimate re-ruling of a resolved motion is executing a
	// passed one
	if types.MotionFinal(motion.Status) {
		switch motion.Status {
		case types.MotionWithdrawn:
			abortErr(c, apierr.Conflict("Motion has been withdrawn"))
			return
		case types.MotionExecuted:
			abortErr(c, apierr.Conflict("Motion has already been executed"))
			return
		case types.MotionPassed:
			if req.Outcome != types.MotionExecuted {
				abortErr(c, apierr.Conflict("Motion is already resolved"))
				return
			}
		default:
			abortErr(c, apierr.Conflict("Motion is already resolved"))
			return
		}
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		motion.Status = req.Outcome
		if motion.ClosedAt == nil {
			motion.ClosedAt = &now
		}
		motion.ResolvedAt = &now
		if req.Note != "" {
			motion.ResolutionNote = req.Note
		}
		if err := tx.Save(&motion).Error; err != nil {
			return err
		}

		if req.Outcome == types.MotionExecuted {
			if err := executeMotion(tx, &motion, country.ID); err != nil {
				return err
			}
		}

		meta, _ := json.Marshal(gin.H{"outcome": req.Outcome, "motionType": motion.Type})
		return tx.Create(&types.ChairActionLog{
			Type:         "RULING",
			ActorCountry: country.ID,
			MotionID:     motion.ID,
			ThreadID:     motion.TargetThreadID,
			PostID:       motion.TargetPostID,
			Note:         req.Note,
			Metadata:     string(meta),
		}).Error
	})
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"motion": motion})
}

// Emergency applies a moderation action immediately, bypassing the motion
// process. Chair only; every use is audited.
func (h Chair) Emergency(c *gin.Context) {
	country, err := actingCountry(c, h.db)
	if err != nil {
		abortErr(c, err)
		return
	}
	if err := requireChair(country); err != nil {
		abortErr(c, err)
		return
	}

	var req struct {
		Action   string `json:"action" binding:"required,oneof=LOCK_THREAD UNLOCK_THREAD PIN_THREAD UNPIN_THREAD ARCHIVE_THREAD REMOVE_POST RESTORE_POST"`
		ThreadID string `json:"threadId"`
		PostID   string `json:"postId"`
		Note     string `json:"note" binding:"required,max=512"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		switch req.Action {
		case "REMOVE_POST", "RESTORE_POST":
			if req.PostID == "" {
				return apierr.Validation("postId is required for post actions")
			}
			if err := applyPostAction(tx, req.Action, req.PostID); err != nil {
				return err
			}
		default:
			if req.ThreadID == "" {
				return apierr.Validation("threadId is required for thread actions")
			}
			if err := applyThreadAction(tx, req.Action, req.ThreadID); err != nil {
				return err
			}
		}

		meta, _ := json.Marshal(gin.H{"action": req.Action, "emergency": true})
		return tx.Create(&types.ChairActionLog{
			Type:         "EMERGENCY",
			ActorCountry: country.ID,
			ThreadID:     req.ThreadID,
			PostID:       req.PostID,
			Note:         req.Note,
			Metadata:     string(meta),
		}).Error
	})
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// executeMotion applies the concrete effect a motion describes.
func executeMotion(tx *gorm.DB, m *types.Motion, actorID string) error {
	switch m.Type {
	case "LOCK_THREAD", "UNLOCK_THREAD", "PIN_THREAD", "UNPIN_THREAD", "ARCHIVE_THREAD":
		if m.TargetThreadID == "" {
			return apierr.Validation("Motion has no target thread")
		}
		return applyThreadAction(tx, m.Type, m.TargetThreadID)

	case "REMOVE_POST", "RESTORE_POST":
		if m.TargetPostID == "" {
			return apierr.Validation("Motion has no target post")
		}
		return applyPostAction(tx, m.Type, m.TargetPostID)

	case "ISSUE_SANCTION":
		if m.TargetCountryID == "" {
			return apierr.Validation("Motion has no target country")
		}
		now := time.Now()
		return tx.Create(&types.Sanction{
			ID:            uuid.NewString(),
			TargetCountry: m.TargetCountryID,
			Title:         m.Title,
			Type:          "MOTION",
			IsActive:      true,
			EffectiveAt:   &now,
		}).Error

	case "LIFT_SANCTION":
		if m.TargetCountryID == "" {
			return apierr.Validation("Motion has no target country")
		}
		now := time.Now()
		return tx.Model(&types.Sanction{}).
			Where("target_country_id = ? AND is_active = ? AND rescinded_at IS NULL", m.TargetCountryID, true).
			Updates(map[string]any{"is_active": false, "rescinded_at": now}).Error

	default:
		return apierr.Validation("Unknown motion type")
	}
}

func applyThreadAction(tx *gorm.DB, action, threadID string) error {
	updates := map[string]any{}
	switch action {
	case "LOCK_THREAD":
		updates["is_locked"] = true
	case "UNLOCK_THREAD":
		updates["is_locked"] = false
	case "PIN_THREAD":
		updates["is_pinned"] = true
	case "UNPIN_THREAD":
		updates["is_pinned"] = false
	case "ARCHIVE_THREAD":
		updates["is_archived"] = true
		updates["is_locked"] = true
	}
	res := tx.Model(&types.DiscussionThread{}).Where("id = ?", threadID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("Target thread not found")
	}
	return nil
}

func applyPostAction(tx *gorm.DB, action, postID string) error {
	updates := map[string]any{}
	if action == "REMOVE_POST" {
		now := time.Now()
		updates["is_deleted"] = true
		updates["deleted_at"] = now
	} else {
		updates["is_deleted"] = false
		updates["deleted_at"] = nil
	}
	res := tx.Model(&types.DiscussionPost{}).Where("id = ?", postID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound("Target post not found")
	}
	return nil
}
