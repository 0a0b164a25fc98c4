// Package tally holds the pure vote-counting and resolution rules for
// amendments and motions. Nothing in here touches storage or the network.
package tally

import (
	"fmt"
	"math"
	"strings"

	"github.com/concord-assembly/concord/src/api/types"
)

// Tally is the vote distribution for one amendment. Absent delegations have
// no row and therefore no count; absence is derived by the caller from the
// eligible population.
type Tally struct {
	Aye     int `json:"aye"`
	Nay     int `json:"nay"`
	Abstain int `json:"abstain"`
}

func (t Tally) Total() int { return t.Aye + t.Nay + t.Abstain }

// Count sums a vote set. Order-independent.
func Count(votes []types.Vote) Tally {
	var t Tally
	for _, v := range votes {
		switch v.Choice {
		case types.ChoiceAye:
			t.Aye++
		case types.ChoiceNay:
			t.Nay++
		case types.ChoiceAbstain:
			t.Abstain++
		}
	}
	return t
}

// MotionTally is the vote distribution for one procedural motion.
type MotionTally struct {
	Approve int `json:"approve"`
	Reject  int `json:"reject"`
	Abstain int `json:"abstain"`
}

func (t MotionTally) Total() int { return t.Approve + t.Reject + t.Abstain }

func CountMotion(votes []types.ModVote) MotionTally {
	var t MotionTally
	for _, v := range votes {
		switch v.Choice {
		case types.ModApprove:
			t.Approve++
		case types.ModReject:
			t.Reject++
		case types.ModAbstain:
			t.Abstain++
		}
	}
	return t
}

// Outcome is the resolution engine's verdict.
type Outcome struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"` // empty when passed
	Needed int    `json:"needed"`
}

const DefaultThreshold = 2.0 / 3.0

// Needed is the AYE count required to pass: ceil(eligible * threshold).
func Needed(eligible int, threshold float64) int {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return int(math.Ceil(float64(eligible) * threshold))
}

// Decide applies the resolution rules in order: veto, quorum, threshold.
// vetoers is the list of veto-holding countries that voted NAY, by name.
// Total given any input; never errors.
func Decide(t Tally, vetoers []string, eligible int, threshold float64, quorum int) Outcome {
	needed := Needed(eligible, threshold)

	if len(vetoers) > 0 {
		return Outcome{
			Passed: false,
			Reason: "Veto by " + strings.Join(vetoers, ", "),
			Needed: needed,
		}
	}

	if cast := t.Total(); cast < quorum {
		return Outcome{
			Passed: false,
			Reason: fmt.Sprintf("Quorum not met: %d of %d required", cast, quorum),
			Needed: needed,
		}
	}

	if t.Aye >= needed {
		return Outcome{Passed: true, Needed: needed}
	}

	return Outcome{
		Passed: false,
		Reason: fmt.Sprintf("Threshold not met: %d of %d required", t.Aye, needed),
		Needed: needed,
	}
}
