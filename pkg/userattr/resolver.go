package userattr

import (
	"context"
	"fmt"
	"strings"

	"github.com/kasuganosora/gacengine/pkg/aclrule"
	"github.com/kasuganosora/gacengine/pkg/logging"
)

// Session is what the host hands UserResolver for one connected
// client: the real identity plus any link parameters carried by the
// current request (§4.4).
type Session struct {
	ID         string
	UserID     string
	LinkParams map[string]string
	Origin     string
}

// LinkParam returns session's link parameter named key, if set.
func (s Session) LinkParam(key string) (string, bool) {
	if s.LinkParams == nil {
		return "", false
	}
	v, ok := s.LinkParams[key]
	return v, ok
}

// builtinFields are the UserInfo fields a user-attribute rule's Name
// must not collide with (§4.4 step 3: "a rule whose name collides
// with a built-in field is ignored with a warning").
var builtinFields = map[string]bool{
	"Access": true, "UserID": true, "Email": true, "Name": true,
	"LinkKey": true, "Origin": true, "Override": true,
}

// UserInfo is what UserResolver produces for a session: the base
// identity, any impersonation override, and the dynamic fields every
// user-attribute rule resolved (§4.4).
type UserInfo struct {
	Access   Access
	UserID   string
	Email    string
	Name     string
	LinkKey  string
	Origin   string
	Override *Identity
	Attrs    map[string]any
}

// ToMap renders UserInfo as the map[string]any an aclrule.EvalContext
// binds as "user" for predicate evaluation: built-in fields at the
// top level, each user-attribute rule's result under its own name.
func (u UserInfo) ToMap() map[string]any {
	out := map[string]any{
		"Access":  string(u.Access),
		"UserID":  u.UserID,
		"Email":   u.Email,
		"Name":    u.Name,
		"LinkKey": u.LinkKey,
		"Origin":  u.Origin,
	}
	for name, v := range u.Attrs {
		out[name] = v
	}
	return out
}

// resolveDottedPath walks a "user.<charId>"-style path (the leading
// "user." already stripped by the caller) against u, first checking
// built-in fields, then the dynamic Attrs map one segment at a time.
func resolveDottedPath(u UserInfo, path string) (any, bool) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 {
		return nil, false
	}

	first := segments[0]
	var cur any
	switch first {
	case "Access":
		cur = string(u.Access)
	case "UserID":
		cur = u.UserID
	case "Email":
		cur = u.Email
	case "Name":
		cur = u.Name
	case "LinkKey":
		cur = u.LinkKey
	case "Origin":
		cur = u.Origin
	default:
		v, ok := u.Attrs[first]
		if !ok {
			return nil, false
		}
		cur = v
	}

	for _, seg := range segments[1:] {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// AttributeQuery resolves a single user-attribute rule's lookup:
// find the row of tableID whose lookupColID equals value, returning
// its fields as a plain map. found=false (with a nil error) means no
// matching row — UserResolver attaches an empty view in that case,
// not a missing one, per §4.4 step 3. This stands in for the
// out-of-scope document data store's query-from-DB callback (§1).
type AttributeQuery func(ctx context.Context, tableID, lookupColID string, value any) (row map[string]any, found bool, err error)

// RuleSource gives UserResolver read access to the Ruler currently in
// force, without coupling this package to the permission package's
// session-cache bookkeeping.
type RuleSource interface {
	GetUserAttributeRules() []aclrule.UserAttributeRule
	RuleError() error
}

// UserResolver implements C6: it produces a UserInfo per session by
// layering base identity, impersonation, and user-attribute rules,
// the algorithm in §4.4.
type UserResolver struct {
	authorizer   *DocumentAuthorizer
	homeDB       func(ctx context.Context, targetUserID string) (Identity, error)
	query        AttributeQuery
	logger       logging.Logger
	recoveryMode bool
}

// NewUserResolver wires an authorizer (base identities), a home
// database lookup (impersonation), a query function (user-attribute
// rules), and a logger. recoveryMode suppresses a ruleErr from
// failing resolution (§4.4 step 4, §7's "Recovery mode suppresses
// this to allow rule repair").
func NewUserResolver(authorizer *DocumentAuthorizer, homeDB func(ctx context.Context, targetUserID string) (Identity, error), query AttributeQuery, logger logging.Logger, recoveryMode bool) *UserResolver {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &UserResolver{authorizer: authorizer, homeDB: homeDB, query: query, logger: logger, recoveryMode: recoveryMode}
}

// ErrRuleCollectionInvalid is returned when rules is invalid and the
// engine is not in recovery mode (§4.4 step 4).
type ErrRuleCollectionInvalid struct {
	Cause error
}

func (e *ErrRuleCollectionInvalid) Error() string {
	return fmt.Sprintf("rule collection invalid, refusing to resolve user: %v", e.Cause)
}

func (e *ErrRuleCollectionInvalid) Unwrap() error { return e.Cause }

// ErrImpersonationDenied is returned when a non-owner session
// attempts to impersonate another user via link parameters.
var ErrImpersonationDenied = fmt.Errorf("only the document owner may impersonate another user")

// Resolve runs the four-step algorithm of §4.4 for session, returning
// the UserInfo an aclrule.EvalContext's "user" map is built from.
func (r *UserResolver) Resolve(ctx context.Context, session Session, rules RuleSource) (UserInfo, *UserAttributes, error) {
	if rules != nil && rules.RuleError() != nil && !r.recoveryMode {
		return UserInfo{}, nil, &ErrRuleCollectionInvalid{Cause: rules.RuleError()}
	}

	identity, err := r.authorizer.Identity(session.UserID)
	if err != nil {
		return UserInfo{}, nil, fmt.Errorf("resolve base identity: %w", err)
	}

	info := UserInfo{
		Access:  identity.Access,
		UserID:  identity.UserID,
		Email:   identity.Email,
		Name:    identity.Name,
		Origin:  session.Origin,
		Attrs:   map[string]any{},
	}
	attrs := &UserAttributes{Resolved: map[string]any{}}

	if linkKey, ok := firstLinkParam(session, "aclAsUserId", "aclAsUser"); ok {
		info.LinkKey = linkKey
		if !identity.IsOwner() {
			return UserInfo{}, nil, ErrImpersonationDenied
		}
		if r.homeDB == nil {
			return UserInfo{}, nil, fmt.Errorf("impersonation requested but no home database lookup configured")
		}
		override, err := r.homeDB(ctx, linkKey)
		if err != nil {
			return UserInfo{}, nil, fmt.Errorf("resolve impersonated user %q: %w", linkKey, err)
		}
		info.Access = override.Access
		info.UserID = override.UserID
		info.Email = override.Email
		info.Name = override.Name
		attrs.Override = &override
	}

	if rules != nil {
		for _, rule := range rules.GetUserAttributeRules() {
			if builtinFields[rule.Name] {
				r.logger.Warn("user attribute rule %q collides with a built-in field, ignoring", rule.Name)
				continue
			}

			charPath := strings.TrimPrefix(rule.CharID, "user.")
			value, ok := resolveDottedPath(info, charPath)
			if !ok {
				info.Attrs[rule.Name] = map[string]any{}
				attrs.Resolved[rule.Name] = map[string]any{}
				continue
			}

			if r.query == nil {
				info.Attrs[rule.Name] = map[string]any{}
				attrs.Resolved[rule.Name] = map[string]any{}
				continue
			}

			row, found, err := r.query(ctx, rule.TableID, rule.LookupColID, value)
			if err != nil {
				r.logger.Warn("user attribute rule %q query failed: %v", rule.Name, err)
				info.Attrs[rule.Name] = map[string]any{}
				attrs.Resolved[rule.Name] = map[string]any{}
				continue
			}
			if !found {
				info.Attrs[rule.Name] = map[string]any{}
				attrs.Resolved[rule.Name] = map[string]any{}
				continue
			}
			info.Attrs[rule.Name] = row
			attrs.Resolved[rule.Name] = row
		}
	}

	return info, attrs, nil
}

func firstLinkParam(session Session, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := session.LinkParam(k); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
