// Package authz resolves permission grants into record-visibility scopes. The
// core consumes the resolved scope at the query boundary; authentication and
// grant assignment live in the surrounding platform.
package authz

import "strings"

// Scope is the breadth of records a grant authorizes.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeOwn
	ScopeSubordinates
	ScopeCompany
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeOwn:
		return "OWN"
	case ScopeSubordinates:
		return "SUBORDINATES"
	case ScopeCompany:
		return "COMPANY"
	case ScopeAll:
		return "ALL"
	}
	return "NONE"
}

func parseScope(raw string) (Scope, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "own":
		return ScopeOwn, true
	case "subordinates":
		return ScopeSubordinates, true
	case "company":
		return ScopeCompany, true
	case "all":
		return ScopeAll, true
	}
	return ScopeNone, false
}

// ResolveScope matches the caller's grants against resource:action and returns
// the widest authorized scope. Precedence: a full wildcard grant beats
// "resource:*", which beats an unscoped "resource:action" (implying ALL),
// which beats scoped "resource:action:scope" grants; among scoped grants the
// most permissive wins.
//
// The unscoped-implies-ALL fallback mirrors observed production behavior; it
// reads like an escalation and is flagged for product review in DESIGN.md.
func ResolveScope(grants []string, resource, action string) Scope {
	resource = strings.ToLower(strings.TrimSpace(resource))
	action = strings.ToLower(strings.TrimSpace(action))

	best := ScopeNone
	for _, grant := range grants {
		grant = strings.ToLower(strings.TrimSpace(grant))
		if grant == "*" || grant == "*:*" {
			return ScopeAll
		}

		parts := strings.Split(grant, ":")
		if parts[0] != resource {
			continue
		}
		switch len(parts) {
		case 2:
			if parts[1] == "*" || parts[1] == action {
				return ScopeAll
			}
		case 3:
			if parts[1] != action {
				continue
			}
			if scope, ok := parseScope(parts[2]); ok && scope > best {
				best = scope
			}
		}
	}
	return best
}
