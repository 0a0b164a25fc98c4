package webserver

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/concord-assembly/concord/src/api/data"
	"github.com/concord-assembly/concord/src/api/types"
)

func createMotion(t *testing.T, g *gin.Engine, token string, body map[string]any) string {
	t.Helper()
	rec := doJSON(t, g, http.MethodPost, "/v1/motions", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	motion := decodeBody(t, rec)["motion"].(map[string]any)
	return motion["id"].(string)
}

func TestCreateMotionValidation(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 3)
	token := authFor(t, "country-0")

	rec := doJSON(t, g, http.MethodPost, "/v1/motions", token, map[string]any{
		"type": "DELETE_EVERYTHING", "title": "nope",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, g, http.MethodPost, "/v1/motions", token, map[string]any{
		"type": "LOCK_THREAD", "title": "Lock it", "targetThreadId": "missing",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Target thread not found")

	rec = doJSON(t, g, http.MethodPost, "/v1/motions", token, map[string]any{
		"type": "ISSUE_SANCTION", "title": "Sanction them", "targetCountryId": "missing",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "Target country not found")
}

func TestCreateMotionRejectsPostOutsideThread(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 3)
	seedThread(t, db, "thread-1")
	seedThread(t, db, "thread-2")
	require.NoError(t, db.Create(&types.DiscussionPost{
		ID: "post-1", ThreadID: "thread-2", AuthorCountry: "country-1", Body: "hi",
	}).Error)

	rec := doJSON(t, g, http.MethodPost, "/v1/motions", authFor(t, "country-0"), map[string]any{
		"type": "REMOVE_POST", "title": "Remove it",
		"targetThreadId": "thread-1", "targetPostId": "post-1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "must belong")
}

func TestSecondOpensVotingOnce(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4)
	seedThread(t, db, "thread-1")
	id := createMotion(t, g, authFor(t, "country-0"), map[string]any{
		"type": "LOCK_THREAD", "title": "Lock the debate", "targetThreadId": "thread-1",
	})

	rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/second", authFor(t, "country-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	motion := decodeBody(t, rec)["motion"].(map[string]any)
	require.Equal(t, types.MotionVoting, motion["status"])
	require.NotNil(t, motion["openedAt"])

	// duplicate second from the same country
	rec = doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/second", authFor(t, "country-1"), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already seconded")

	// a further second while voting is fine
	rec = doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/second", authFor(t, "country-2"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var m types.Motion
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	require.ElementsMatch(t, []string{"country-1", "country-2"}, m.DecodeContext().Seconds)
}

func TestSecondRejectsResolvedMotion(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 3)
	seedThread(t, db, "thread-1")
	id := createMotion(t, g, authFor(t, "country-0"), map[string]any{
		"type": "LOCK_THREAD", "title": "Lock", "targetThreadId": "thread-1",
	})
	require.NoError(t, db.Model(&types.Motion{}).Where("id = ?", id).
		Update("status", types.MotionWithdrawn).Error)

	rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/second", authFor(t, "country-1"), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func votingMotion(t *testing.T, g *gin.Engine, db *gorm.DB, proposer string) string {
	t.Helper()
	seedThread(t, db, "thread-1")
	id := createMotion(t, g, authFor(t, proposer), map[string]any{
		"type": "LOCK_THREAD", "title": "Lock the debate", "targetThreadId": "thread-1",
	})
	rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/second", authFor(t, "country-1"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return id
}

func TestMotionVoteAutoResolvesAtQuorum(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4) // quorum = max(3, ceil(4*0.5)) = 3
	id := votingMotion(t, g, db, "country-0")

	for _, c := range []string{"country-0", "country-1"} {
		rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/vote", authFor(t, c),
			map[string]any{"choice": "APPROVE"})
		require.Equal(t, http.StatusOK, rec.Code)
		motion := decodeBody(t, rec)["motion"].(map[string]any)
		require.Equal(t, types.MotionVoting, motion["status"])
	}

	rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/vote", authFor(t, "country-2"),
		map[string]any{"choice": "REJECT"})
	require.Equal(t, http.StatusOK, rec.Code)
	motion := decodeBody(t, rec)["motion"].(map[string]any)
	require.Equal(t, types.MotionPassed, motion["status"])
	require.Equal(t, "Motion passed 2-1-0", motion["resolutionNote"])

	// voting after resolution is a conflict
	rec = doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/vote", authFor(t, "country-3"),
		map[string]any{"choice": "APPROVE"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "not open for voting")
}

func TestMotionVoteTieFails(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4)
	id := votingMotion(t, g, db, "country-0")

	votes := map[string]string{
		"country-0": "APPROVE",
		"country-1": "REJECT",
		"country-2": "ABSTAIN",
	}
	for c, choice := range votes {
		rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/vote", authFor(t, c),
			map[string]any{"choice": choice})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var m types.Motion
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	require.Equal(t, types.MotionFailed, m.Status)
	require.Equal(t, "Motion failed 1-1-1", m.ResolutionNote)
}

func TestMotionVoteRecastBeforeQuorum(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 6) // quorum = 3
	id := votingMotion(t, g, db, "country-0")
	token := authFor(t, "country-2")

	rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/vote", token,
		map[string]any{"choice": "APPROVE"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/vote", token,
		map[string]any{"choice": "REJECT"})
	require.Equal(t, http.StatusOK, rec.Code)

	var n int64
	require.NoError(t, db.Model(&types.ModVote{}).Where("motion_id = ?", id).Count(&n).Error)
	require.EqualValues(t, 1, n)
}

func TestMotionVoteRequiresAvailableQuorum(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 2) // fewer than the 3-country floor
	seedThread(t, db, "thread-1")
	id := createMotion(t, g, authFor(t, "country-0"), map[string]any{
		"type": "LOCK_THREAD", "title": "Lock", "targetThreadId": "thread-1",
	})

	rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/vote", authFor(t, "country-1"),
		map[string]any{"choice": "APPROVE"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "Quorum not met")
}

func TestQuorumFloorSettingOverride(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 2) // below the default 3-country floor
	require.NoError(t, db.Create(&types.Setting{
		ID: 1, Name: data.SettingMotionQuorumFloor, Value: "2",
	}).Error)
	require.NoError(t, data.RefreshSettings(db))
	id := votingMotion(t, g, db, "country-0")

	rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/vote", authFor(t, "country-0"),
		map[string]any{"choice": "APPROVE"})
	require.Equal(t, http.StatusOK, rec.Code)
	motion := decodeBody(t, rec)["motion"].(map[string]any)
	require.Equal(t, types.MotionVoting, motion["status"])

	rec = doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/vote", authFor(t, "country-1"),
		map[string]any{"choice": "APPROVE"})
	require.Equal(t, http.StatusOK, rec.Code)
	motion = decodeBody(t, rec)["motion"].(map[string]any)
	require.Equal(t, types.MotionPassed, motion["status"])
	require.Equal(t, "Motion passed 2-0-0", motion["resolutionNote"])
}

func TestWithdrawOnlyByProposer(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4)
	id := votingMotion(t, g, db, "country-0")

	rec := doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/withdraw", authFor(t, "country-1"), nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/withdraw", authFor(t, "country-0"),
		map[string]any{"note": "procedural error"})
	require.Equal(t, http.StatusOK, rec.Code)

	var m types.Motion
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	require.Equal(t, types.MotionWithdrawn, m.Status)
	require.Equal(t, "procedural error", m.ResolutionNote)

	// withdrawing again is a conflict
	rec = doJSON(t, g, http.MethodPost, "/v1/motions/"+id+"/withdraw", authFor(t, "country-0"), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestChairRuleRequiresPrivilege(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4) // no veto holders
	id := votingMotion(t, g, db, "country-0")

	rec := doJSON(t, g, http.MethodPost, "/v1/chair/rule", authFor(t, "country-2"), map[string]any{
		"motionId": id, "outcome": "PASSED",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Chair privileges required")
}

func TestChairRuleExecutedAppliesEffect(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4, 3) // country-3 holds veto, may act as chair
	id := votingMotion(t, g, db, "country-0")

	rec := doJSON(t, g, http.MethodPost, "/v1/chair/rule", authFor(t, "country-3"), map[string]any{
		"motionId": id, "outcome": "EXECUTED", "note": "so ordered",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var thread types.DiscussionThread
	require.NoError(t, db.First(&thread, "id = ?", "thread-1").Error)
	require.True(t, thread.IsLocked)

	var m types.Motion
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	require.Equal(t, types.MotionExecuted, m.Status)

	var logs []types.ChairActionLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, "RULING", logs[0].Type)
	require.Equal(t, "country-3", logs[0].ActorCountry)
	require.Equal(t, id, logs[0].MotionID)
}

func TestChairRuleCannotFlipResolvedMotion(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4, 3)
	id := votingMotion(t, g, db, "country-0")
	token := authFor(t, "country-3")

	rec := doJSON(t, g, http.MethodPost, "/v1/chair/rule", token, map[string]any{
		"motionId": id, "outcome": "PASSED",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// a resolved motion cannot be re-ruled to the other outcome
	rec = doJSON(t, g, http.MethodPost, "/v1/chair/rule", token, map[string]any{
		"motionId": id, "outcome": "FAILED",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already resolved")

	// executing the passed motion remains allowed
	rec = doJSON(t, g, http.MethodPost, "/v1/chair/rule", token, map[string]any{
		"motionId": id, "outcome": "EXECUTED",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var m types.Motion
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	require.Equal(t, types.MotionExecuted, m.Status)
}

func TestChairRuleCannotExecuteFailedMotion(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4, 3)
	id := votingMotion(t, g, db, "country-0")
	token := authFor(t, "country-3")

	rec := doJSON(t, g, http.MethodPost, "/v1/chair/rule", token, map[string]any{
		"motionId": id, "outcome": "FAILED",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, g, http.MethodPost, "/v1/chair/rule", token, map[string]any{
		"motionId": id, "outcome": "EXECUTED",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecutedSanctionMotionBlocksTarget(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4, 3)
	seedTreaty(t, db)
	id := createMotion(t, g, authFor(t, "country-0"), map[string]any{
		"type": "ISSUE_SANCTION", "title": "Censure Country 1", "targetCountryId": "country-1",
	})

	rec := doJSON(t, g, http.MethodPost, "/v1/chair/rule", authFor(t, "country-3"), map[string]any{
		"motionId": id, "outcome": "EXECUTED",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// the sanctioned country can no longer act
	rec = doJSON(t, g, http.MethodPost, "/v1/amendments", authFor(t, "country-1"), map[string]any{
		"title": "x", "op": "ADD", "treatySlug": "founding-charter", "newBody": "b",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "active sanction")
}

func TestChairEmergencyAuditsAction(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4, 3)
	seedThread(t, db, "thread-1")

	rec := doJSON(t, g, http.MethodPost, "/v1/chair/emergency", authFor(t, "country-3"), map[string]any{
		"action": "ARCHIVE_THREAD", "threadId": "thread-1", "note": "off-topic spam",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var thread types.DiscussionThread
	require.NoError(t, db.First(&thread, "id = ?", "thread-1").Error)
	require.True(t, thread.IsArchived)
	require.True(t, thread.IsLocked)

	var logs []types.ChairActionLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, "EMERGENCY", logs[0].Type)
	require.Equal(t, "off-topic spam", logs[0].Note)
}

func TestChairEmergencyUnknownTarget(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4, 3)

	rec := doJSON(t, g, http.MethodPost, "/v1/chair/emergency", authFor(t, "country-3"), map[string]any{
		"action": "LOCK_THREAD", "threadId": "missing", "note": "x",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueueHTTPFlow(t *testing.T) {
	g, db := newTestServer(t)
	seedCountries(t, db, 4, 3)

	rec := doJSON(t, g, http.MethodPost, "/v1/queue/request", authFor(t, "country-1"),
		map[string]any{"threadId": "thread-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, g, http.MethodPost, "/v1/queue/request", authFor(t, "country-2"),
		map[string]any{"threadId": "thread-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	// recognition is chair-only
	rec = doJSON(t, g, http.MethodPost, "/v1/queue/recognize", authFor(t, "country-1"),
		map[string]any{"threadId": "thread-1"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, g, http.MethodPost, "/v1/queue/recognize", authFor(t, "country-3"),
		map[string]any{"threadId": "thread-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	queue := decodeBody(t, rec)["queue"].(map[string]any)
	require.Equal(t, "country-1", queue["recognized"])

	rec = doJSON(t, g, http.MethodGet, "/v1/queue/thread-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	queue = decodeBody(t, rec)["queue"].(map[string]any)
	require.Equal(t, []any{"country-2"}, queue["queue"])
}
