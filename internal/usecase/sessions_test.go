package usecase

import (
	"context"
	"errors"
	"testing"

	"chatline/internal/domain"
)

func TestSessionServiceList(t *testing.T) {
	store := &fakeStore{sessions: []domain.SessionSummary{{ID: "b", Preview: "new"}, {ID: "a", Preview: "old"}}}
	svc := NewSessionService(store, StaticUser("alice"), testLogger())

	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" {
		t.Errorf("List = %+v", got)
	}
	if store.usernames[0] != "alice" {
		t.Errorf("username = %q", store.usernames[0])
	}
}

func TestSessionServiceRequiresUser(t *testing.T) {
	svc := NewSessionService(&fakeStore{}, StaticUser(""), testLogger())
	if _, err := svc.List(context.Background()); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Errorf("List error = %v, want ErrNotLoggedIn", err)
	}
	if err := svc.Delete(context.Background(), "s-1"); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Errorf("Delete error = %v, want ErrNotLoggedIn", err)
	}
}

func TestSessionServiceDelete(t *testing.T) {
	store := &fakeStore{}
	svc := NewSessionService(store, StaticUser("alice"), testLogger())

	if err := svc.Delete(context.Background(), "s-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "s-1" {
		t.Errorf("deleted = %v", store.deleted)
	}

	store.err = domain.ErrSessionNotFound
	if err := svc.Delete(context.Background(), "gone"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
	if err := svc.Delete(context.Background(), " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty id error = %v, want ErrInvalidInput", err)
	}
}

func TestSessionServiceRename(t *testing.T) {
	store := &fakeStore{}
	svc := NewSessionService(store, StaticUser("alice"), testLogger())

	if err := svc.Rename(context.Background(), "s-1", "  Trip plans \n"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if store.renamed["s-1"] != "Trip plans" {
		t.Errorf("renamed = %q, want trimmed name", store.renamed["s-1"])
	}

	for _, name := range []string{"", "   ", "\t"} {
		err := svc.Rename(context.Background(), "s-2", name)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Rename(%q) error = %v, want ErrInvalidInput", name, err)
		}
	}
	if _, ok := store.renamed["s-2"]; ok {
		t.Error("empty name reached the store")
	}
}

func TestSessionServiceMessages(t *testing.T) {
	svc := NewSessionService(seededStore(), StaticUser("alice"), testLogger())
	msgs, err := svc.Messages(context.Background(), "s-1")
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 4 {
		t.Errorf("messages = %d, want 4", len(msgs))
	}
	if _, err := svc.Messages(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("error = %v", err)
	}
}
