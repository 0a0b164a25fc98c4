package types

import (
	"encoding/json"
	"time"
)

// Amendment lifecycle
const (
	AmendmentOpen   = "OPEN"
	AmendmentClosed = "CLOSED"

	ResultPassed = "PASSED"
	ResultFailed = "FAILED"
)

// Amendment operations against treaty text
const (
	OpAdd    = "ADD"
	OpEdit   = "EDIT"
	OpRemove = "REMOVE"
)

// Vote choices
const (
	ChoiceAye     = "AYE"
	ChoiceNay     = "NAY"
	ChoiceAbstain = "ABSTAIN"
	// ChoiceAbsent is never stored; casting it deletes the vote row.
	ChoiceAbsent = "ABSENT"
)

// Motion lifecycle
const (
	MotionProposed  = "PROPOSED"
	MotionVoting    = "VOTING"
	MotionPassed    = "PASSED"
	MotionFailed    = "FAILED"
	MotionWithdrawn = "WITHDRAWN"
	MotionExecuted  = "EXECUTED"
)

// Motion vote choices
const (
	ModApprove = "APPROVE"
	ModReject  = "REJECT"
	ModAbstain = "ABSTAIN"
)

// Member delegations
type Country struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Name     string `gorm:"size:128;not null" json:"name"`
	Slug     string `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Code     string `gorm:"size:8" json:"code"`
	HasVeto  bool   `gorm:"default:false" json:"hasVeto"`
	IsActive bool   `gorm:"default:true" json:"isActive"`
}

// Treaties and their articles
type Treaty struct {
	ID    string `gorm:"primaryKey;size:36" json:"id"`
	Slug  string `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Title string `gorm:"size:255;not null" json:"title"`
}

type Article struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	TreatyID string `gorm:"size:36;index;not null" json:"treatyId"`
	Order    int    `gorm:"not null" json:"order"`
	Heading  string `gorm:"size:255;not null" json:"heading"`
	Body     string `gorm:"type:text;not null" json:"body"`
}

// Proposed treaty changes, subject to a timed vote
type Amendment struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Slug            string    `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	Title           string    `gorm:"size:255;not null" json:"title"`
	Rationale       string    `gorm:"type:text" json:"rationale,omitempty"`
	Op              string    `gorm:"size:16;not null" json:"op"` // ADD, EDIT, REMOVE
	TreatyID        string    `gorm:"size:36;index;not null" json:"treatyId"`
	TargetArticleID string    `gorm:"size:36" json:"targetArticleId,omitempty"`
	NewHeading      string    `gorm:"size:255" json:"newHeading,omitempty"`
	NewBody         string    `gorm:"type:text" json:"newBody,omitempty"`
	NewOrder        int       `json:"newOrder,omitempty"`
	Status          string    `gorm:"size:16;index;not null" json:"status"` // OPEN, CLOSED
	Result          string    `gorm:"size:16" json:"result,omitempty"`      // PASSED, FAILED; empty while open
	FailureReason   string    `gorm:"size:512" json:"failureReason,omitempty"`
	EligibleCount   int       `gorm:"not null" json:"eligibleCount"` // frozen at creation
	Threshold       float64   `gorm:"not null" json:"threshold"`
	Quorum          int       `gorm:"default:0" json:"quorum"`
	OpensAt         time.Time `json:"opensAt"`
	ClosesAt        time.Time `json:"closesAt"`
	ProposerCountry string    `gorm:"column:proposer_country_id;size:36;not null" json:"proposerCountryId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Outcome reduces the (status, result) pair to one value: empty while the
// amendment is still open, otherwise the recorded result.
func (a *Amendment) Outcome() string {
	if a.Status != AmendmentClosed {
		return ""
	}
	return a.Result
}

// Votes on amendments. At most one row per (amendment, country); a country
// with no row is counted as absent.
type Vote struct {
	ID          uint64    `gorm:"primaryKey" json:"-"`
	AmendmentID string    `gorm:"size:36;not null;uniqueIndex:idx_vote_amendment_country" json:"amendmentId"`
	CountryID   string    `gorm:"size:36;not null;uniqueIndex:idx_vote_amendment_country" json:"countryId"`
	Choice      string    `gorm:"size:16;not null" json:"choice"` // AYE, NAY, ABSTAIN
	Comment     string    `gorm:"size:1024" json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Procedural motions (moderation actions), distinct from treaty amendments
type Motion struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Type            string     `gorm:"size:32;not null" json:"type"`
	Status          string     `gorm:"size:16;index;not null" json:"status"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description,omitempty"`
	Rationale       string     `gorm:"type:text" json:"rationale,omitempty"`
	Context         string     `gorm:"type:text" json:"context,omitempty"`
	TargetThreadID  string     `gorm:"size:36" json:"targetThreadId,omitempty"`
	TargetPostID    string     `gorm:"size:36" json:"targetPostId,omitempty"`
	TargetCountryID string     `gorm:"size:36" json:"targetCountryId,omitempty"`
	ResolutionNote  string     `gorm:"size:512" json:"resolutionNote,omitempty"`
	CreatedByCtry   string     `gorm:"column:created_by_country_id;size:36;not null" json:"createdByCountryId"`
	SubmittedAt     time.Time  `json:"submittedAt"`
	OpenedAt        *time.Time `json:"openedAt,omitempty"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
}

// MotionContext is the typed shape of Motion.Context. Seconds is the set of
// seconding country ids; Extra carries any motion-type specific payload.
type MotionContext struct {
	Seconds []string       `json:"seconds,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// DecodeContext parses the context bag, tolerating an empty or malformed
// column (a fresh motion has none).
func (m *Motion) DecodeContext() MotionContext {
	var ctx MotionContext
	if m.Context != "" {
		_ = json.Unmarshal([]byte(m.Context), &ctx)
	}
	return ctx
}

func (m *Motion) SetContext(ctx MotionContext) {
	raw, err := json.Marshal(ctx)
	if err != nil {
		return
	}
	m.Context = string(raw)
}

// MotionFinal reports whether a motion status is terminal.
func MotionFinal(status string) bool {
	switch status {
	case MotionPassed, MotionFailed, MotionWithdrawn, MotionExecuted:
		return true
	}
	return false
}

// Votes on motions
type ModVote struct {
	ID        uint64    `gorm:"primaryKey" json:"-"`
	MotionID  string    `gorm:"size:36;not null;uniqueIndex:idx_modvote_motion_country" json:"motionId"`
	CountryID string    `gorm:"size:36;not null;uniqueIndex:idx_modvote_motion_country" json:"countryId"`
	Choice    string    `gorm:"size:16;not null" json:"choice"` // APPROVE, REJECT, ABSTAIN
	Comment   string    `gorm:"size:1024" json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Debate discussion threads, the targets of moderation motions
type DiscussionThread struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	AmendmentID string    `gorm:"size:36;index" json:"amendmentId,omitempty"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	IsLocked    bool      `gorm:"default:false" json:"isLocked"`
	IsPinned    bool      `gorm:"default:false" json:"isPinned"`
	IsArchived  bool      `gorm:"default:false" json:"isArchived"`
	CreatedAt   time.Time `json:"createdAt"`
}

type DiscussionPost struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	ThreadID      string     `gorm:"size:36;index;not null" json:"threadId"`
	AuthorCountry string     `gorm:"column:author_country_id;size:36;not null" json:"authorCountryId"`
	Body          string     `gorm:"type:text;not null" json:"body"`
	IsDeleted     bool       `gorm:"default:false" json:"isDeleted"`
	DeletedAt     *time.Time `json:"deletedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Sanctions suspend a country's right to act
type Sanction struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	TargetCountry string     `gorm:"column:target_country_id;size:36;index;not null" json:"targetCountryId"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Type          string     `gorm:"size:32" json:"type,omitempty"`
	IsActive      bool       `gorm:"default:true" json:"isActive"`
	EffectiveAt   *time.Time `json:"effectiveAt,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	RescindedAt   *time.Time `json:"rescindedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Immutable audit trail of chair actions
type ChairActionLog struct {
	ID           uint64    `gorm:"primaryKey" json:"id"`
	Type         string    `gorm:"size:32;not null" json:"type"`
	ActorCountry string    `gorm:"column:actor_country_id;size:36;not null" json:"actorCountryId"`
	MotionID     string    `gorm:"size:36" json:"motionId,omitempty"`
	ThreadID     string    `gorm:"size:36" json:"threadId,omitempty"`
	PostID       string    `gorm:"size:36" json:"postId,omitempty"`
	Note         string    `gorm:"size:512" json:"note,omitempty"`
	Metadata     string    `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Settings
type Setting struct {
	ID    uint8  `gorm:"primaryKey"`
	Name  string `gorm:"size:32;not null"`
	Value string `gorm:"size:256;not null"`
}
