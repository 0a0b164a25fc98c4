// Package resolution closes amendments: it tallies the recorded votes,
// applies the veto/quorum/threshold rules and performs the OPEN -> CLOSED
// transition against the store.
package resolution

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/tally"
	"github.com/concord-assembly/concord/src/api/types"
)

// Result reports one finalization. Applied is false when another caller won
// the OPEN -> CLOSED race first; the outcome is still the deterministic
// verdict for the vote set that was read.
type Result struct {
	Outcome  tally.Outcome
	Tally    tally.Tally
	Eligible int
	Applied  bool
}

// LoadTally reads the grouped vote counts for an amendment.
func LoadTally(db *gorm.DB, amendmentID string) (tally.Tally, error) {
	type agg struct {
		Choice string
		Count  int
	}
	var rows []agg
	err := db.Model(&types.Vote{}).
		Select("choice, count(*) as count").
		Where("amendment_id = ?", amendmentID).
		Group("choice").
		Scan(&rows).Error
	if err != nil {
		return tally.Tally{}, err
	}

	var t tally.Tally
	for _, r := range rows {
		switch r.Choice {
		case types.ChoiceAye:
			t.Aye = r.Count
		case types.ChoiceNay:
			t.Nay = r.Count
		case types.ChoiceAbstain:
			t.Abstain = r.Count
		}
	}
	return t, nil
}

// vetoers returns the names of veto-holding countries that voted NAY,
// ordered by name so the failure reason is stable.
func vetoers(db *gorm.DB, amendmentID string) ([]string, error) {
	var names []string
	err := db.Model(&types.Vote{}).
		Select("countries.name").
		Joins("JOIN countries ON countries.id = votes.country_id").
		Where("votes.amendment_id = ? AND votes.choice = ? AND countries.has_veto = ?",
			amendmentID, types.ChoiceNay, true).
		Order("countries.name").
		Scan(&names).Error
	return names, err
}

// Finalize computes the outcome for an amendment and closes it. The CLOSED
// transition is a single conditional update guarded on status = OPEN, so two
// overlapping sweepers cannot both apply it; the loser sees Applied = false.
func Finalize(db *gorm.DB, a *types.Amendment) (Result, error) {
	t, err := LoadTally(db, a.ID)
	if err != nil {
		return Result{}, err
	}

	vetoNames, err := vetoers(db, a.ID)
	if err != nil {
		return Result{}, err
	}

	eligible := a.EligibleCount
	if eligible == 0 {
		var n int64
		if err := db.Model(&types.Country{}).Where("is_active = ?", true).Count(&n).Error; err != nil {
			return Result{}, err
		}
		eligible = int(n)
	}

	threshold := a.Threshold
	if threshold == 0 {
		threshold = tally.DefaultThreshold
	}

	out := tally.Decide(t, vetoNames, eligible, threshold, a.Quorum)

	result := types.ResultFailed
	if out.Passed {
		result = types.ResultPassed
	}

	res := db.Model(&types.Amendment{}).
		Where("id = ? AND status = ?", a.ID, types.AmendmentOpen).
		Updates(map[string]any{
			"status":         types.AmendmentClosed,
			"result":         result,
			"failure_reason": out.Reason,
			"closes_at":      time.Now(),
		})
	if res.Error != nil {
		return Result{}, res.Error
	}

	applied := res.RowsAffected > 0
	if applied {
		a.Status = types.AmendmentClosed
		a.Result = result
		a.FailureReason = out.Reason
	}

	return Result{Outcome: out, Tally: t, Eligible: eligible, Applied: applied}, nil
}

// CloseExpired finalizes every OPEN amendment whose voting window has ended,
// optionally scoped to a single slug. Failures on one amendment are logged
// and do not stop the sweep.
func CloseExpired(db *gorm.DB, slug string) error {
	q := db.Where("status = ? AND closes_at <= ?", types.AmendmentOpen, time.Now())
	if slug != "" {
		q = q.Where("slug = ?", slug)
	}

	var due []types.Amendment
	if err := q.Find(&due).Error; err != nil {
		return err
	}

	for i := range due {
		if _, err := Finalize(db, &due[i]); err != nil {
			log.Printf("close sweep: finalize %s: %v", due[i].Slug, err)
		}
	}
	return nil
}
