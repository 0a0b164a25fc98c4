package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/concord-assembly/concord/src/api/types"
)

func votes(choices ...string) []types.Vote {
	out := make([]types.Vote, 0, len(choices))
	for i, c := range choices {
		out = append(out, types.Vote{CountryID: string(rune('a' + i)), Choice: c})
	}
	return out
}

func TestCountIsOrderIndependent(t *testing.T) {
	a := Count(votes(types.ChoiceAye, types.ChoiceNay, types.ChoiceAye, types.ChoiceAbstain))
	b := Count(votes(types.ChoiceAbstain, types.ChoiceAye, types.ChoiceAye, types.ChoiceNay))
	assert.Equal(t, a, b)
	assert.Equal(t, Tally{Aye: 2, Nay: 1, Abstain: 1}, a)
	assert.Equal(t, 4, a.Total())
}

func TestCountIgnoresUnknownChoices(t *testing.T) {
	got := Count([]types.Vote{{Choice: "MAYBE"}, {Choice: types.ChoiceAye}})
	assert.Equal(t, Tally{Aye: 1}, got)
}

func TestNeeded(t *testing.T) {
	assert.Equal(t, 6, Needed(9, 2.0/3.0))
	assert.Equal(t, 4, Needed(5, 2.0/3.0))
	assert.Equal(t, 0, Needed(0, 2.0/3.0))
	// zero threshold falls back to the 2/3 default
	assert.Equal(t, 6, Needed(9, 0))
}

func TestDecideVetoWinsOverEverything(t *testing.T) {
	// AYE count clears the threshold, veto still fails it
	out := Decide(Tally{Aye: 8, Nay: 1}, []string{"Arcadia"}, 9, 2.0/3.0, 0)
	assert.False(t, out.Passed)
	assert.Equal(t, "Veto by Arcadia", out.Reason)

	out = Decide(Tally{Aye: 8, Nay: 2}, []string{"Arcadia", "Borduria"}, 9, 2.0/3.0, 0)
	assert.Equal(t, "Veto by Arcadia, Borduria", out.Reason)
}

func TestDecideQuorumBeforeThreshold(t *testing.T) {
	// 3 cast, quorum 5: fails on quorum even though every vote is AYE and
	// needed would be satisfied against a tiny electorate
	out := Decide(Tally{Aye: 3}, nil, 4, 2.0/3.0, 5)
	assert.False(t, out.Passed)
	assert.Equal(t, "Quorum not met: 3 of 5 required", out.Reason)
}

func TestDecideThresholdBoundary(t *testing.T) {
	// eligible=9, threshold=2/3 => needed=6
	out := Decide(Tally{Aye: 6}, nil, 9, 2.0/3.0, 0)
	assert.True(t, out.Passed)
	assert.Empty(t, out.Reason)
	assert.Equal(t, 6, out.Needed)

	out = Decide(Tally{Aye: 5}, nil, 9, 2.0/3.0, 0)
	assert.False(t, out.Passed)
	assert.Equal(t, "Threshold not met: 5 of 6 required", out.Reason)
}

func TestDecideZeroVotes(t *testing.T) {
	out := Decide(Tally{}, nil, 5, 2.0/3.0, 0)
	assert.False(t, out.Passed)
	assert.Equal(t, "Threshold not met: 0 of 4 required", out.Reason)

	// needed=0 is the only way an empty vote set passes
	out = Decide(Tally{}, nil, 0, 2.0/3.0, 0)
	assert.True(t, out.Passed)
}

func TestDecideScenarioEligibleFive(t *testing.T) {
	// 4 AYE 1 NAY from non-veto countries: passes (needed=4)
	out := Decide(Tally{Aye: 4, Nay: 1}, nil, 5, 2.0/3.0, 0)
	assert.True(t, out.Passed)

	// same shape but a veto holder swings to NAY: 3 AYE 2 NAY with a veto
	out = Decide(Tally{Aye: 3, Nay: 2}, []string{"Arcadia"}, 5, 2.0/3.0, 0)
	assert.False(t, out.Passed)
	assert.Contains(t, out.Reason, "Arcadia")
}

func TestDecideDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		out := Decide(Tally{Aye: 5, Nay: 2, Abstain: 1}, nil, 9, 2.0/3.0, 3)
		assert.Equal(t, Outcome{Passed: false, Reason: "Threshold not met: 5 of 6 required", Needed: 6}, out)
	}
}

func TestCountMotion(t *testing.T) {
	got := CountMotion([]types.ModVote{
		{Choice: types.ModApprove},
		{Choice: types.ModApprove},
		{Choice: types.ModReject},
		{Choice: types.ModAbstain},
	})
	assert.Equal(t, MotionTally{Approve: 2, Reject: 1, Abstain: 1}, got)
	assert.Equal(t, 4, got.Total())
}
