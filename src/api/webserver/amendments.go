package webserver

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/apierr"
	"github.com/concord-assembly/concord/src/api/data"
	"github.com/concord-assembly/concord/src/api/resolution"
	"github.com/concord-assembly/concord/src/api/tally"
	"github.com/concord-assembly/concord/src/api/types"
)

const defaultVotingWindowHours = 24

type Amendments struct {
	db        *gorm.DB
	sanitizer *bluemonday.Policy
}

func NewAmendments(db *gorm.DB) Amendments {
	// Strict policy with the handful of formatting elements amendment text
	// may carry
	sanitizer := bluemonday.StrictPolicy()
	sanitizer.AllowElements("p", "br", "strong", "em", "code", "pre", "blockquote")
	sanitizer.AllowElements("ul", "ol", "li")
	return Amendments{db: db, sanitizer: sanitizer}
}

var amendmentSlugRe = regexp.MustCompile(`^amendment-(\d+)$`)

func nextAmendmentSlug(db *gorm.DB) (string, error) {
	var slugs []string
	err := db.Model(&types.Amendment{}).
		Where("slug LIKE ?", "amendment-%").
		Pluck("slug", &slugs).Error
	if err != nil {
		return "", err
	}

	max := 0
	for _, slug := range slugs {
		m := amendmentSlugRe.FindStringSubmatch(slug)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("amendment-%d", max+1), nil
}

func (h Amendments) Create(c *gin.Context) {
	country, err := actingCountry(c, h.db)
	if err != nil {
		abortErr(c, err)
		return
	}

	var req struct {
		Title           string `json:"title" binding:"required,max=255"`
		Rationale       string `json:"rationale"`
		Op              string `json:"op" binding:"required,oneof=ADD EDIT REMOVE"`
		TreatySlug      string `json:"treatySlug" binding:"required"`
		TargetArticleID string `json:"targetArticleId"`
		NewHeading      string `json:"newHeading" binding:"max=255"`
		NewBody         string `json:"newBody"`
		NewOrder        int    `json:"newOrder"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Per-op field requirements
	if (req.Op == types.OpEdit || req.Op == types.OpRemove) && req.TargetArticleID == "" {
		abortErr(c, apierr.Validation("targetArticleId is required for EDIT/REMOVE"))
		return
	}
	if (req.Op == types.OpAdd || req.Op == types.OpEdit) && req.NewBody == "" {
		abortErr(c, apierr.Validation("newBody is required for ADD/EDIT"))
		return
	}

	var treaty types.Treaty
	if err := h.db.First(&treaty, "slug = ?", req.TreatySlug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Treaty not found"))
			return
		}
		abortErr(c, err)
		return
	}

	if req.TargetArticleID != "" {
		var article types.Article
		if err := h.db.First(&article, "id = ? AND treaty_id = ?", req.TargetArticleID, treaty.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abortErr(c, apierr.NotFound("Target article not found"))
				return
			}
			abortErr(c, err)
			return
		}
	}

	var eligible int64
	if err := h.db.Model(&types.Country{}).Where("is_active = ?", true).Count(&eligible).Error; err != nil {
		abortErr(c, err)
		return
	}

	slug, err := nextAmendmentSlug(h.db)
	if err != nil {
		abortErr(c, err)
		return
	}

	window := time.Duration(data.GetSettingInt(data.SettingVotingWindowHours, defaultVotingWindowHours)) * time.Hour

	now := time.Now()
	amendment := types.Amendment{
		ID:              uuid.NewString(),
		Slug:            slug,
		Title:           html.EscapeString(req.Title),
		Rationale:       h.sanitizer.Sanitize(req.Rationale),
		Op:              req.Op,
		TreatyID:        treaty.ID,
		TargetArticleID: req.TargetArticleID,
		NewHeading:      html.EscapeString(req.NewHeading),
		NewBody:         h.sanitizer.Sanitize(req.NewBody),
		NewOrder:        req.NewOrder,
		Status:          types.AmendmentOpen,
		EligibleCount:   int(eligible),
		Threshold:       tally.DefaultThreshold,
		OpensAt:         now,
		ClosesAt:        now.Add(window),
		ProposerCountry: country.ID,
	}
	if err := h.db.Create(&amendment).Error; err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"amendment": amendment})
}

func (h Amendments) List(c *gin.Context) {
	var amendments []types.Amendment
	if err := h.db.Order("created_at DESC").Find(&amendments).Error; err != nil {
		abortErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"amendments": amendments})
}

func (h Amendments) Get(c *gin.Context) {
	slug := c.Param("slug")

	// settle any expired window before serving a read
	if err := resolution.CloseExpired(h.db, slug); err != nil {
		abortErr(c, err)
		return
	}

	var amendment types.Amendment
	if err := h.db.First(&amendment, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Amendment not found"))
			return
		}
		abortErr(c, err)
		return
	}

	t, err := resolution.LoadTally(h.db, amendment.ID)
	if err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"amendment": amendment, "tally": t})
}

func (h Amendments) Close(c *gin.Context) {
	if _, err := actingCountry(c, h.db); err != nil {
		abortErr(c, err)
		return
	}

	var amendment types.Amendment
	if err := h.db.First(&amendment, "slug = ?", c.Param("slug")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Amendment not found"))
			return
		}
		abortErr(c, err)
		return
	}
	if amendment.Status != types.AmendmentOpen {
		abortErr(c, apierr.Conflict("Amendment already closed"))
		return
	}

	res, err := resolution.Finalize(h.db, &amendment)
	if err != nil {
		abortErr(c, err)
		return
	}
	if !res.Applied {
		abortErr(c, apierr.Conflict("Amendment already closed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        amendment.Status,
		"result":        amendment.Result,
		"failureReason": amendment.FailureReason,
		"counts":        res.Tally,
		"eligible":      res.Eligible,
		"needed":        res.Outcome.Needed,
	})
}

func (h Amendments) Apply(c *gin.Context) {
	if _, err := actingCountry(c, h.db); err != nil {
		abortErr(c, err)
		return
	}

	slug := c.Param("slug")
	if err := resolution.CloseExpired(h.db, slug); err != nil {
		abortErr(c, err)
		return
	}

	var amendment types.Amendment
	if err := h.db.First(&amendment, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abortErr(c, apierr.NotFound("Amendment not found"))
			return
		}
		abortErr(c, err)
		return
	}
	if amendment.Status != types.AmendmentClosed || amendment.Result != types.ResultPassed {
		abortErr(c, apierr.Conflict("Amendment not passed"))
		return
	}

	if err := h.apply(&amendment); err != nil {
		abortErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// apply performs the treaty mutation a passed amendment describes.
func (h Amendments) apply(a *types.Amendment) error {
	return h.db.Transaction(func(tx *gorm.DB) error {
		switch a.Op {
		case types.OpAdd:
			if a.NewHeading == "" || a.NewBody == "" {
				return apierr.Validation("Missing content")
			}
			order := a.NewOrder
			if order == 0 {
				var n int64
				if err := tx.Model(&types.Article{}).Where("treaty_id = ?", a.TreatyID).Count(&n).Error; err != nil {
					return err
				}
				order = int(n) + 1
			}
			return tx.Create(&types.Article{
				ID:       uuid.NewString(),
				TreatyID: a.TreatyID,
				Order:    order,
				Heading:  a.NewHeading,
				Body:     a.NewBody,
			}).Error

		case types.OpEdit:
			if a.TargetArticleID == "" || (a.NewHeading == "" && a.NewBody == "") {
				return apierr.Validation("Missing target or content")
			}
			updates := map[string]any{}
			if a.NewHeading != "" {
				updates["heading"] = a.NewHeading
			}
			if a.NewBody != "" {
				updates["body"] = a.NewBody
			}
			res := tx.Model(&types.Article{}).Where("id = ?", a.TargetArticleID).Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apierr.NotFound("Article not found")
			}
			return nil

		case types.OpRemove:
			if a.TargetArticleID == "" {
				return apierr.Validation("Missing target")
			}
			var article types.Article
			if err := tx.First(&article, "id = ?", a.TargetArticleID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apierr.NotFound("Article not found")
				}
				return err
			}
			if err := tx.Delete(&types.Article{}, "id = ?", article.ID).Error; err != nil {
				return err
			}
			// re-pack article numbering
			return tx.Model(&types.Article{}).
				Where("treaty_id = ? AND `order` > ?", article.TreatyID, article.Order).
				UpdateColumn("order", gorm.Expr("`order` - 1")).Error

		default:
			return apierr.Validation("Invalid operation")
		}
	})
}
