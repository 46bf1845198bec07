package permission

import (
	"sync"

	"github.com/kasuganosora/gacengine/pkg/aclrule"
)

// Ruler pairs one compiled RuleCollection with a per-session cache of
// PermissionInfo (C4). It is the unit of rule state StepBuilder
// attaches to each ActionStep (§3's Lifecycles: "A Ruler is created at
// engine init and whenever _updateRules detects ACL or schema
// changes").
type Ruler struct {
	mu    sync.RWMutex
	rc    *aclrule.RuleCollection
	cache map[string]*PermissionInfo // keyed by session identity
}

// NewRuler wraps rc with an empty per-session cache.
func NewRuler(rc *aclrule.RuleCollection) *Ruler {
	return &Ruler{rc: rc, cache: map[string]*PermissionInfo{}}
}

// RuleCollection returns the compiled rule set this Ruler wraps.
func (r *Ruler) RuleCollection() *aclrule.RuleCollection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rc
}

// GetPermissionInfo returns the memoized PermissionInfo for sessionID,
// creating one lazily on first use (§4.3).
func (r *Ruler) GetPermissionInfo(sessionID string, user map[string]any, isOwner bool) *PermissionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pi, ok := r.cache[sessionID]; ok {
		return pi
	}
	pi := New(r.rc, user, isOwner)
	r.cache[sessionID] = pi
	return pi
}

// Update rebuilds the collection and clears the cache (§4.3): "update
// (docData) rebuilds the collection and clears the cache".
func (r *Ruler) Update(rc *aclrule.RuleCollection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rc = rc
	r.cache = map[string]*PermissionInfo{}
}

// ClearCache drops every memoized PermissionInfo without touching the
// compiled rules, used on schema changes and user-attribute source
// changes (§4.3).
func (r *Ruler) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = map[string]*PermissionInfo{}
}

// ReleaseSession drops sessionID's cached PermissionInfo, the
// explicit on-session-close hook DESIGN NOTES calls for in languages
// without weak maps (§9).
func (r *Ruler) ReleaseSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, sessionID)
}
