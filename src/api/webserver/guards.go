package webserver

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/apierr"
	"github.com/concord-assembly/concord/src/api/data"
	"github.com/concord-assembly/concord/src/api/types"
)

const minCountriesForQuorum = 3

type quorumInfo struct {
	TotalActive int `json:"totalActiveCountries"`
	Required    int `json:"required"`
}

// actingCountry resolves the authenticated delegation and enforces that it
// is allowed to act: assigned, active, and not under sanction.
func actingCountry(c *gin.Context, db *gorm.DB) (*types.Country, error) {
	cid := c.GetString(countryIDKey)
	if cid == "" {
		return nil, apierr.Unauthorized("Unauthorized")
	}

	var country types.Country
	if err := db.First(&country, "id = ?", cid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.Forbidden("Assigned country not found")
		}
		return nil, err
	}
	if !country.IsActive {
		return nil, apierr.Forbidden("Country is inactive")
	}

	if err := ensureNotSanctioned(db, country.ID); err != nil {
		return nil, err
	}
	return &country, nil
}

func ensureNotSanctioned(db *gorm.DB, countryID string) error {
	now := time.Now()
	var sanction types.Sanction
	err := db.Where("target_country_id = ? AND is_active = ? AND rescinded_at IS NULL", countryID, true).
		Where("effective_at IS NULL OR effective_at <= ?", now).
		Where("expires_at IS NULL OR expires_at > ?", now).
		First(&sanction).Error
	if err == nil {
		return apierr.Forbidden("Country under active sanction: " + sanction.Title)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// fetchQuorum computes the dynamic motion quorum: the configured floor
// (default three countries), otherwise half the active membership rounded up.
// A membership too small to satisfy its own quorum is a conflict.
func fetchQuorum(db *gorm.DB) (quorumInfo, error) {
	var total int64
	if err := db.Model(&types.Country{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
		return quorumInfo{}, err
	}

	floor := data.GetSettingInt(data.SettingMotionQuorumFloor, minCountriesForQuorum)
	required := int(math.Ceil(float64(total) * 0.5))
	if required < floor {
		required = floor
	}

	info := quorumInfo{TotalActive: int(total), Required: required}
	if info.TotalActive < info.Required {
		return info, apierr.Conflict(fmt.Sprintf("Quorum not met: %d of %d active countries available",
			info.TotalActive, info.Required))
	}
	return info, nil
}

// requireChair gates privileged rulings: veto holders and the designated
// chair delegation.
func requireChair(country *types.Country) error {
	if country.HasVeto || country.Slug == "chair" {
		return nil
	}
	return apierr.Forbidden("Chair privileges required")
}

// abortErr writes the structured error response for a failed operation.
func abortErr(c *gin.Context, err error) {
	c.JSON(apierr.Status(err), gin.H{"error": apierr.Message(err)})
}
