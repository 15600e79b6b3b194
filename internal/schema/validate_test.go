package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "tenant_1", true},
		{"uppercase", "TenantAcme", true},
		{"digits only", "12345", true},
		{"underscore only", "_", true},
		{"max length", strings.Repeat("a", 63), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 64), false},
		{"dash", "tenant-1", false},
		{"space", "tenant 1", false},
		{"dot", "public.users", false},
		{"quote", `tenant"1`, false},
		{"semicolon injection", "tenant_1; DROP TABLE x", false},
		{"comment injection", "tenant--", false},
		{"unicode", "tenänt", false},
		{"newline", "tenant\n1", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Valid(tc.input), "input %q", tc.input)
		})
	}
}

func TestQualify(t *testing.T) {
	assert.Equal(t, `"tenant_acme"."users"`, Qualify("tenant_acme", "users"))
	assert.Equal(t, `"t1"."user_roles"`, Qualify("t1", "user_roles"))
}

func TestQualifyPanicsOnUnvalidatedName(t *testing.T) {
	require.Panics(t, func() {
		Qualify("acme; DROP SCHEMA public", "users")
	})
	require.Panics(t, func() {
		Qualify("", "users")
	})
}
