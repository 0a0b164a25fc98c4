package session

import (
	"time"
)

// queueState is one thread's speaker queue: the waiting delegations in
// request order plus the single recognized slot. Queues outlive presence
// membership; a country stays queued after its socket drops until it is
// skipped or recognized.
type queueState struct {
	threadID   string
	entries    []queueEntry
	recognized string
	updatedAt  time.Time
}

type queueEntry struct {
	countryID   string
	requestedAt time.Time
}

// QueueSnapshot is the serialized queue state broadcast to a room.
type QueueSnapshot struct {
	ThreadID   string   `json:"threadId"`
	Queue      []string `json:"queue"`
	Recognized *string  `json:"recognized"`
	UpdatedAt  int64    `json:"updatedAt"` // unix milliseconds
}

func (r *Registry) queueLocked(threadID string) *queueState {
	q := r.queues[threadID]
	if q == nil {
		q = &queueState{threadID: threadID, updatedAt: time.Now()}
		r.queues[threadID] = q
	}
	return q
}

func (q *queueState) snapshot() QueueSnapshot {
	ids := make([]string, 0, len(q.entries))
	for _, e := range q.entries {
		ids = append(ids, e.countryID)
	}
	snap := QueueSnapshot{
		ThreadID:  q.threadID,
		Queue:     ids,
		UpdatedAt: q.updatedAt.UnixMilli(),
	}
	if q.recognized != "" {
		rec := q.recognized
		snap.Recognized = &rec
	}
	return snap
}

func (q *queueState) contains(countryID string) bool {
	for _, e := range q.entries {
		if e.countryID == countryID {
			return true
		}
	}
	return false
}

func (q *queueState) remove(countryID string) bool {
	for i, e := range q.entries {
		if e.countryID == countryID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// QueueState returns the current snapshot without mutating anything.
func (r *Registry) QueueState(threadID string) QueueSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queueLocked(threadID).snapshot()
}

// QueueRequest appends a delegation to the queue tail. Already-queued and
// already-recognized delegations are left untouched.
func (r *Registry) QueueRequest(threadID, countryID string) QueueSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.queueLocked(threadID)
	if countryID != "" && q.recognized != countryID && !q.contains(countryID) {
		q.entries = append(q.entries, queueEntry{countryID: countryID, requestedAt: time.Now()})
		q.updatedAt = time.Now()
		r.broadcastQueueLocked(q)
	}
	return q.snapshot()
}

// QueueRecognize grants the floor. An explicit target is pulled out of the
// queue wherever it sits; without one the head is popped. Recognizing the
// current speaker is a no-op; with no target and an empty queue the floor is
// cleared.
func (r *Registry) QueueRecognize(threadID, countryID string) QueueSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.queueLocked(threadID)

	target := countryID
	if target == "" && len(q.entries) > 0 {
		target = q.entries[0].countryID
		q.entries = q.entries[1:]
	}

	if target == q.recognized {
		return q.snapshot()
	}

	if target != "" {
		q.remove(target)
		q.recognized = target
	} else {
		q.recognized = ""
	}

	q.updatedAt = time.Now()
	r.broadcastQueueLocked(q)
	return q.snapshot()
}

// QueueSkip drops a delegation. With a target: out of the queue, and off the
// floor if it held it. Without one: clear the floor if occupied, else drop
// the queue head.
func (r *Registry) QueueSkip(threadID, countryID string) QueueSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.queueLocked(threadID)
	changed := false

	switch {
	case countryID != "":
		if q.remove(countryID) {
			changed = true
		}
		if q.recognized == countryID {
			q.recognized = ""
			changed = true
		}
	case q.recognized != "":
		q.recognized = ""
		changed = true
	case len(q.entries) > 0:
		q.entries = q.entries[1:]
		changed = true
	}

	if changed {
		q.updatedAt = time.Now()
		r.broadcastQueueLocked(q)
	}
	return q.snapshot()
}

// broadcastQueueLocked pushes the serialized queue to the room whose id
// matches the thread id.
func (r *Registry) broadcastQueueLocked(q *queueState) {
	r.broadcastLocked(q.threadID, "queue:update", q.snapshot())
}
