package identity

import (
	"testing"
	"time"
)

func TestRoleElevated(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role Role
		want bool
	}{
		{role: RoleAdmin, want: true},
		{role: RoleManager, want: true},
		{role: RoleMember, want: false},
		{role: Role("intern"), want: false},
	}

	for _, tc := range cases {
		if got := tc.role.Elevated(); got != tc.want {
			t.Fatalf("Elevated(%q)=%v want=%v", tc.role, got, tc.want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	for _, r := range []Role{RoleAdmin, RoleManager, RoleMember} {
		if !r.Valid() {
			t.Fatalf("expected %q to be valid", r)
		}
	}
	if Role("superadmin").Valid() {
		t.Fatalf("unknown role must not be valid")
	}
	if Role("").Valid() {
		t.Fatalf("empty role must not be valid")
	}
}

func TestDefaultName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "local part", in: "dana@example.com", want: "dana"},
		{name: "trims whitespace", in: "  dana@example.com ", want: "dana"},
		{name: "no at sign", in: "dana", want: "dana"},
		{name: "leading at sign", in: "@example.com", want: "@example.com"},
		{name: "empty", in: "", want: "user"},
		{name: "blank", in: "   ", want: "user"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DefaultName(tc.in); got != tc.want {
				t.Fatalf("DefaultName(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	if got := NormalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Fatalf("NormalizeEmail=%q", got)
	}
}

func TestNewID(t *testing.T) {
	t.Parallel()

	a, err := NewID(time.Time{})
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if len(a) != 26 {
		t.Fatalf("expected 26-char ULID, got %d chars", len(a))
	}

	b, err := NewID(time.Time{})
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct ids")
	}
}
