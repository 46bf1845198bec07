package userattr

import (
	"errors"
	"sync"
	"time"
)

// Access is a document-level base role (§4.4's UserInfo.Access), the
// coarse grant a session has before any per-row/per-column ACL rule is
// evaluated. Owner is the only role the engine treats specially: it
// bypasses rule evaluation entirely (hasFullAccess) and gates
// impersonation and rule-change bundles.
type Access string

const (
	AccessOwner  Access = "owners"
	AccessEditor Access = "editors"
	AccessViewer Access = "viewers"
	AccessNone   Access = ""
)

// Identity is the static, pre-rule identity of a document collaborator,
// the input DocumentAuthorizer hands to UserResolver step 1.
type Identity struct {
	UserID    string
	Email     string
	Name      string
	Access    Access
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOwner reports whether this identity carries the owner role.
func (id Identity) IsOwner() bool {
	return id.Access == AccessOwner
}

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// DocumentAuthorizer tracks the base Access role of every collaborator
// on a document. It is the home-database-backed half of UserResolver
// step 1 ("read base role and identity from the session's
// authorizer"); UserResolver layers user-attribute rules and
// impersonation on top of what this returns.
type DocumentAuthorizer struct {
	mu    sync.RWMutex
	users map[string]*Identity // keyed by UserID
}

// NewDocumentAuthorizer returns an authorizer with no collaborators.
func NewDocumentAuthorizer() *DocumentAuthorizer {
	return &DocumentAuthorizer{users: make(map[string]*Identity)}
}

// Grant adds or replaces a collaborator's identity and access role.
func (a *DocumentAuthorizer) Grant(userID, email, name string, access Access) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if userID == "" {
		return errors.New("userID cannot be empty")
	}
	now := time.Now()
	existing, ok := a.users[userID]
	if ok {
		existing.Email = email
		existing.Name = name
		existing.Access = access
		existing.UpdatedAt = now
		return nil
	}
	a.users[userID] = &Identity{
		UserID:    userID,
		Email:     email,
		Name:      name,
		Access:    access,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// Identity returns the collaborator's current identity.
func (a *DocumentAuthorizer) Identity(userID string) (Identity, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	u, ok := a.users[userID]
	if !ok || !u.IsActive {
		return Identity{}, ErrUserNotFound
	}
	return *u, nil
}

// Revoke removes a collaborator entirely.
func (a *DocumentAuthorizer) Revoke(userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.users[userID]; !ok {
		return ErrUserNotFound
	}
	delete(a.users, userID)
	return nil
}

// Deactivate suspends a collaborator without forgetting their identity,
// the way a removed-but-auditable share is handled upstream.
func (a *DocumentAuthorizer) Deactivate(userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, ok := a.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.IsActive = false
	u.UpdatedAt = time.Now()
	return nil
}

// HasFullAccess reports whether userID is the document owner,
// synonymous with §4.9's hasFullAccess.
func (a *DocumentAuthorizer) HasFullAccess(userID string) bool {
	id, err := a.Identity(userID)
	return err == nil && id.IsOwner()
}

// ListCollaborators returns the ids of every active collaborator.
func (a *DocumentAuthorizer) ListCollaborators() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.users))
	for id, u := range a.users {
		if u.IsActive {
			ids = append(ids, id)
		}
	}
	return ids
}
