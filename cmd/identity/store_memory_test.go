package identity

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryProfileStore_InsertFetch(t *testing.T) {
	t.Parallel()

	s := NewInMemoryProfileStore()
	ctx := context.Background()

	username := "dana"
	in := Profile{
		ID:       "01JTESTPROFILE0000000000AA",
		Email:    "dana@example.com",
		Name:     "Dana",
		Role:     RoleMember,
		Username: &username,
	}

	stored, err := s.Insert(ctx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if stored.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be stamped")
	}

	got, err := s.FetchByID(ctx, in.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Email != in.Email || got.Role != RoleMember {
		t.Fatalf("fetched mismatch: %+v", got)
	}
	if got.Username == nil || *got.Username != "dana" {
		t.Fatalf("expected username to round-trip, got %v", got.Username)
	}
	if got.TeamID != nil {
		t.Fatalf("expected nil team id")
	}
}

func TestInMemoryProfileStore_FetchMissingIsNotFound(t *testing.T) {
	t.Parallel()

	s := NewInMemoryProfileStore()

	_, err := s.FetchByID(context.Background(), "01JTESTMISSING00000000000A")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !IsNotFound(err) {
		t.Fatalf("expected not-found kind, got: %v", err)
	}
	if IsTransport(err) {
		t.Fatalf("not-found must not be a transport kind")
	}
}

func TestInMemoryProfileStore_DuplicateEmailIsCreationError(t *testing.T) {
	t.Parallel()

	s := NewInMemoryProfileStore()
	ctx := context.Background()

	if _, err := s.Insert(ctx, Profile{ID: "01JTESTDUPA00000000000000A", Email: "dup@example.com", Name: "A", Role: RoleMember}); err != nil {
		t.Fatalf("insert 1: %v", err)
	}

	// Same email, different case.
	_, err := s.Insert(ctx, Profile{ID: "01JTESTDUPB00000000000000B", Email: "DUP@example.com", Name: "B", Role: RoleMember})
	if err == nil {
		t.Fatalf("expected duplicate email to fail")
	}
	if !IsCreation(err) {
		t.Fatalf("expected creation kind, got: %v", err)
	}
}

func TestInMemoryProfileStore_InvalidRoleRejected(t *testing.T) {
	t.Parallel()

	s := NewInMemoryProfileStore()

	_, err := s.Insert(context.Background(), Profile{ID: "01JTESTROLE00000000000000A", Email: "r@example.com", Name: "R", Role: Role("root")})
	if !IsInvalidInput(err) {
		t.Fatalf("expected invalid-input kind, got: %v", err)
	}
}

func TestInMemoryProfileStore_ListAllNewestFirst(t *testing.T) {
	t.Parallel()

	s := NewInMemoryProfileStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ids := []string{
		"01JTESTLIST00000000000000A",
		"01JTESTLIST00000000000000B",
		"01JTESTLIST00000000000000C",
	}
	for i, id := range ids {
		_, err := s.Insert(ctx, Profile{
			ID:        id,
			Email:     id + "@example.com",
			Name:      "u",
			Role:      RoleMember,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	out, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].CreatedAt.After(out[i-1].CreatedAt) {
			t.Fatalf("expected newest-first ordering, got %v then %v", out[i-1].CreatedAt, out[i].CreatedAt)
		}
	}
	if out[0].ID != ids[2] {
		t.Fatalf("expected newest profile first, got %s", out[0].ID)
	}
}
