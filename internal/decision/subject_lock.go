package decision

import (
	"sync"
	"time"
)

// SubjectLocks is an advisory lock per (guild, subject) that keeps two
// detectors from acting on the same member at once. Locks expire on their
// own after ttl so a stuck execution never blocks a subject forever.
type SubjectLocks struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewSubjectLocks(ttl time.Duration) *SubjectLocks {
	return &SubjectLocks{
		held: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (sl *SubjectLocks) SetClock(now func() time.Time) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.now = now
}

// TryAcquire takes the lock for (guildID, subjectID) unless it is held and
// not yet expired.
func (sl *SubjectLocks) TryAcquire(guildID, subjectID string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	key := guildID + ":" + subjectID
	now := sl.now()
	if expires, ok := sl.held[key]; ok && now.Before(expires) {
		return false
	}

	sl.held[key] = now.Add(sl.ttl)
	return true
}

// Release drops the lock before its ttl.
func (sl *SubjectLocks) Release(guildID, subjectID string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	delete(sl.held, guildID+":"+subjectID)
}

// Remaining returns how long the lock stays held, zero if free.
func (sl *SubjectLocks) Remaining(guildID, subjectID string) time.Duration {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	expires, ok := sl.held[guildID+":"+subjectID]
	if !ok {
		return 0
	}

	remaining := expires.Sub(sl.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Sweep removes expired locks and returns how many were dropped.
func (sl *SubjectLocks) Sweep() int {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	now := sl.now()
	n := 0
	for key, expires := range sl.held {
		if !now.Before(expires) {
			delete(sl.held, key)
			n++
		}
	}
	return n
}
