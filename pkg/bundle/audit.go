package bundle

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State mirrors the BundleController's four-phase lifecycle (§4.11):
// open → verified → applied → idle, with any state collapsing to idle
// on failure.
type State string

const (
	StateOpen     State = "open"
	StateVerified State = "verified"
	StateApplied  State = "applied"
	StateIdle     State = "idle"
)

// AuditEntry records one bundle's passage through the state machine,
// for operational visibility into ACL_DENY/NEED_RELOAD outcomes.
type AuditEntry struct {
	ID                      string    `json:"id"`
	UserID                  string    `json:"user_id"`
	StartedAt               time.Time `json:"started_at"`
	FinishedAt              time.Time `json:"finished_at,omitempty"`
	State                   State     `json:"state"`
	HasDeliberateRuleChange bool      `json:"has_deliberate_rule_change"`
	NeedReload              bool      `json:"need_reload"`
	DenyReason              string    `json:"deny_reason,omitempty"`
}

// AuditLog is a fixed-size ring buffer of bundle lifecycle events, the
// way the teacher's query auditor keeps a bounded in-memory trail
// instead of an unbounded one.
type AuditLog struct {
	mu     sync.RWMutex
	buffer []*AuditEntry
	size   int
	index  int
	filled bool
}

// NewAuditLog returns a ring buffer holding at most size entries.
func NewAuditLog(size int) *AuditLog {
	if size <= 0 {
		size = 256
	}
	return &AuditLog{buffer: make([]*AuditEntry, size), size: size}
}

// Begin records a bundle entering the open state.
func (l *AuditLog) Begin(userID string, hasDeliberateRuleChange bool) *AuditEntry {
	entry := &AuditEntry{
		ID:                      uuid.NewString(),
		UserID:                  userID,
		StartedAt:               time.Now(),
		State:                   StateOpen,
		HasDeliberateRuleChange: hasDeliberateRuleChange,
	}
	l.push(entry)
	return entry
}

// Transition records entry moving to a new state.
func (l *AuditLog) Transition(entry *AuditEntry, state State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.State = state
	if state == StateIdle {
		entry.FinishedAt = time.Now()
	}
}

// Deny records that canApplyBundle rejected the bundle, collapsing it
// straight back to idle.
func (l *AuditLog) Deny(entry *AuditEntry, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.State = StateIdle
	entry.DenyReason = reason
	entry.FinishedAt = time.Now()
}

// MarkNeedReload records that a subscriber (or every subscriber, for a
// deliberate rule change) was sent NEED_RELOAD instead of DocActions.
func (l *AuditLog) MarkNeedReload(entry *AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.NeedReload = true
}

func (l *AuditLog) push(entry *AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer[l.index] = entry
	l.index = (l.index + 1) % l.size
	if l.index == 0 {
		l.filled = true
	}
}

// Recent returns up to limit entries, most recent first.
func (l *AuditLog) Recent(limit int) []*AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := l.index
	if l.filled {
		count = l.size
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]*AuditEntry, 0, limit)
	for i := 0; i < limit; i++ {
		pos := (l.index - 1 - i + l.size) % l.size
		if entry := l.buffer[pos]; entry != nil {
			out = append(out, entry)
		}
	}
	return out
}

// Export renders the current buffer contents as indented JSON, in the
// teacher auditor's export style.
func (l *AuditLog) Export() (string, error) {
	entries := l.Recent(0)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
