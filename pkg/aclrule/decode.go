package aclrule

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kasuganosora/gacengine/pkg/docmodel"
)

func decodeResources(t *docmodel.Table) map[int64]aclResourceRow {
	out := make(map[int64]aclResourceRow, len(t.RowIDs))
	tableIDs := t.Columns["tableId"]
	colIDs := t.Columns["colIds"]
	for i, rowID := range t.RowIDs {
		row := aclResourceRow{RowID: rowID}
		if i < len(tableIDs) {
			row.TableID, _ = tableIDs[i].(string)
		}
		if i < len(colIDs) {
			row.ColIDs, _ = colIDs[i].(string)
		}
		out[rowID] = row
	}
	return out
}

func decodeRules(t *docmodel.Table) []aclRuleRow {
	out := make([]aclRuleRow, 0, len(t.RowIDs))
	resourceIDs := t.Columns["resource"]
	formulas := t.Columns["aclFormula"]
	perms := t.Columns["permissions"]
	memos := t.Columns["memo"]
	userAttrs := t.Columns["userAttributes"]

	for i, rowID := range t.RowIDs {
		row := aclRuleRow{RowID: rowID}
		if i < len(resourceIDs) {
			row.ResourceID = asInt64(resourceIDs[i])
		}
		if i < len(formulas) {
			row.AclFormula, _ = formulas[i].(string)
		}
		if i < len(perms) {
			row.Permissions, _ = perms[i].(string)
		}
		if i < len(memos) {
			row.MemoText, _ = memos[i].(string)
		}
		if i < len(userAttrs) {
			row.UserAttributes, _ = userAttrs[i].(string)
		}
		out = append(out, row)
	}
	return out
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// resource row, expanded to one ResourceKey per listed column (colIds
// "*" or empty means table-level; otherwise comma-separated column
// ids each get their own resource entry handled by the caller).
func (r aclResourceRow) expand() []ResourceKey {
	if r.ColIDs == "" || r.ColIDs == AllColumns {
		return []ResourceKey{{TableID: r.TableID, ColID: AllColumns}}
	}
	parts := strings.Split(r.ColIDs, ",")
	keys := make([]ResourceKey, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		keys = append(keys, ResourceKey{TableID: r.TableID, ColID: p})
	}
	if len(keys) == 0 {
		keys = append(keys, ResourceKey{TableID: r.TableID, ColID: AllColumns})
	}
	return keys
}

// parsePermissions decodes a compact permission-delta string like
// "+R-U" (allow read, deny update) into a PermissionSet. Recognized
// axis letters: R(ead) U(pdate) C(reate) D(elete) S(chemaEdit), each
// preceded by '+' (allow) or '-' (deny); "all" expands to every axis.
func parsePermissions(spec string) (PermissionSet, error) {
	var ps PermissionSet
	if spec == "" {
		return ps, nil
	}

	i := 0
	for i < len(spec) {
		sign := spec[i]
		if sign != '+' && sign != '-' {
			return PermissionSet{}, fmt.Errorf("invalid permission spec %q: expected '+' or '-' at offset %d", spec, i)
		}
		i++
		if i >= len(spec) {
			return PermissionSet{}, fmt.Errorf("invalid permission spec %q: trailing sign", spec)
		}

		verdict := Allow
		if sign == '-' {
			verdict = Deny
		}

		// "all" expands to every axis.
		if strings.HasPrefix(spec[i:], "all") {
			ps.Read, ps.Update, ps.Create, ps.Delete, ps.SchemaEdit = verdict, verdict, verdict, verdict, verdict
			i += 3
			continue
		}

		letter := spec[i]
		i++
		switch letter {
		case 'R':
			ps.Read = verdict
		case 'U':
			ps.Update = verdict
		case 'C':
			ps.Create = verdict
		case 'D':
			ps.Delete = verdict
		case 'S':
			ps.SchemaEdit = verdict
		default:
			return PermissionSet{}, fmt.Errorf("invalid permission spec %q: unknown axis %q", spec, letter)
		}
	}
	return ps, nil
}

func parseUserAttribute(raw string) (UserAttributeRule, error) {
	var attr UserAttributeRule
	if err := json.Unmarshal([]byte(raw), &attr); err != nil {
		return UserAttributeRule{}, fmt.Errorf("parse user attribute rule: %w", err)
	}
	if attr.Name == "" || attr.TableID == "" || attr.LookupColID == "" || attr.CharID == "" {
		return UserAttributeRule{}, fmt.Errorf("user attribute rule missing a required field: %+v", attr)
	}
	return attr, nil
}
