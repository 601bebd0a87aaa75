package authz_test

import (
	"testing"

	"github.com/nominalabs/nomina/internal/authz"
	"github.com/stretchr/testify/assert"
)

func TestResolveScope(t *testing.T) {
	cases := []struct {
		name     string
		grants   []string
		resource string
		action   string
		want     authz.Scope
	}{
		{"no grants", nil, "payroll", "read", authz.ScopeNone},
		{"unrelated resource", []string{"reports:read"}, "payroll", "read", authz.ScopeNone},
		{"own only", []string{"payroll:read:own"}, "payroll", "read", authz.ScopeOwn},
		{"subordinates", []string{"payroll:read:subordinates"}, "payroll", "read", authz.ScopeSubordinates},
		{"most permissive scoped wins", []string{"payroll:read:own", "payroll:read:company"}, "payroll", "read", authz.ScopeCompany},
		{"unscoped implies all", []string{"payroll:read"}, "payroll", "read", authz.ScopeAll},
		{"unscoped beats scoped", []string{"payroll:read:own", "payroll:read"}, "payroll", "read", authz.ScopeAll},
		{"resource wildcard", []string{"payroll:*"}, "payroll", "calculate", authz.ScopeAll},
		{"full wildcard", []string{"*"}, "anything", "anything", authz.ScopeAll},
		{"action mismatch", []string{"payroll:read:all"}, "payroll", "cancel", authz.ScopeNone},
		{"malformed scope ignored", []string{"payroll:read:planet"}, "payroll", "read", authz.ScopeNone},
		{"case insensitive", []string{"Payroll:Read:OWN"}, "payroll", "read", authz.ScopeOwn},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, authz.ResolveScope(tc.grants, tc.resource, tc.action))
		})
	}
}

func TestScopeString(t *testing.T) {
	assert.Equal(t, "OWN", authz.ScopeOwn.String())
	assert.Equal(t, "NONE", authz.ScopeNone.String())
	assert.Equal(t, "ALL", authz.ScopeAll.String())
}
