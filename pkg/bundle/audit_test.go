package bundle

import "testing"

func TestAuditLogBeginAndTransition(t *testing.T) {
	log := NewAuditLog(4)
	entry := log.Begin("u1", false)
	if entry.State != StateOpen {
		t.Fatalf("State = %v, want open", entry.State)
	}

	log.Transition(entry, StateVerified)
	log.Transition(entry, StateApplied)
	log.Transition(entry, StateIdle)
	if entry.State != StateIdle {
		t.Errorf("State = %v, want idle", entry.State)
	}
	if entry.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set once idle")
	}
}

func TestAuditLogDeny(t *testing.T) {
	log := NewAuditLog(4)
	entry := log.Begin("u1", true)
	log.Deny(entry, "ACL_DENY")

	if entry.State != StateIdle {
		t.Errorf("denied bundle should collapse to idle, got %v", entry.State)
	}
	if entry.DenyReason != "ACL_DENY" {
		t.Errorf("DenyReason = %q, want ACL_DENY", entry.DenyReason)
	}
}

func TestAuditLogRingBufferWraps(t *testing.T) {
	log := NewAuditLog(2)
	first := log.Begin("u1", false)
	log.Begin("u2", false)
	log.Begin("u3", false) // overwrites first

	recent := log.Recent(0)
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(recent))
	}
	for _, e := range recent {
		if e.ID == first.ID {
			t.Error("oldest entry should have been evicted from the ring buffer")
		}
	}
}

func TestAuditLogMarkNeedReload(t *testing.T) {
	log := NewAuditLog(4)
	entry := log.Begin("u1", true)
	log.MarkNeedReload(entry)
	if !entry.NeedReload {
		t.Error("NeedReload should be true after MarkNeedReload")
	}
}
