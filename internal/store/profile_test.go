package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/formcoach/internal/exercise"
)

// newTestStore creates a new Store backed by a temporary database file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "formcoach-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestProfileRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	profile := &Profile{
		ID:       "profile-1",
		Name:     "deep squats",
		Exercise: exercise.KindSquat,
		Config:   json.RawMessage(`{"down_threshold":85}`),
	}

	if err := repo.Create(profile); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	if profile.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}
	if profile.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set after create")
	}

	retrieved, err := repo.GetByID("profile-1")
	if err != nil {
		t.Fatalf("failed to get profile by ID: %v", err)
	}

	if retrieved.Name != profile.Name {
		t.Errorf("Name mismatch: got %q, want %q", retrieved.Name, profile.Name)
	}
	if retrieved.Exercise != exercise.KindSquat {
		t.Errorf("Exercise mismatch: got %q, want %q", retrieved.Exercise, exercise.KindSquat)
	}
	if string(retrieved.Config) != `{"down_threshold":85}` {
		t.Errorf("Config mismatch: got %s", retrieved.Config)
	}
}

func TestProfileRepository_CreateDefaultsConfig(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	if err := repo.Create(&Profile{ID: "p", Name: "plain", Exercise: exercise.KindPlank}); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	got, err := repo.GetByID("p")
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}
	if string(got.Config) != "{}" {
		t.Errorf("expected empty object config, got %s", got.Config)
	}
}

func TestProfileRepository_Constraints(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	if err := repo.Create(&Profile{ID: "a", Name: "same", Exercise: exercise.KindPushup}); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	t.Run("duplicate name", func(t *testing.T) {
		err := repo.Create(&Profile{ID: "b", Name: "same", Exercise: exercise.KindPushup})
		if err == nil {
			t.Error("expected error for duplicate profile name")
		}
	})

	t.Run("unknown exercise", func(t *testing.T) {
		err := repo.Create(&Profile{ID: "c", Name: "yoga", Exercise: exercise.Kind("yoga")})
		if err == nil {
			t.Error("expected error for unknown exercise")
		}
	})
}

func TestProfileRepository_GetByName(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	if err := repo.Create(&Profile{ID: "p1", Name: "strict pushups", Exercise: exercise.KindPushup}); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	got, err := repo.GetByName("strict pushups")
	if err != nil {
		t.Fatalf("failed to get profile by name: %v", err)
	}
	if got.ID != "p1" {
		t.Errorf("ID mismatch: got %q, want %q", got.ID, "p1")
	}

	if _, err := repo.GetByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Profiles().GetByID("does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	profiles, err := repo.List()
	if err != nil {
		t.Fatalf("failed to list profiles: %v", err)
	}
	if len(profiles) != 0 {
		t.Errorf("expected 0 profiles, got %d", len(profiles))
	}

	for _, p := range []*Profile{
		{ID: "1", Name: "squat a", Exercise: exercise.KindSquat},
		{ID: "2", Name: "plank a", Exercise: exercise.KindPlank},
		{ID: "3", Name: "squat b", Exercise: exercise.KindSquat},
	} {
		if err := repo.Create(p); err != nil {
			t.Fatalf("failed to create profile %s: %v", p.ID, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	profiles, err = repo.List()
	if err != nil {
		t.Fatalf("failed to list profiles: %v", err)
	}
	if len(profiles) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(profiles))
	}
	if profiles[0].ID != "3" {
		t.Errorf("expected newest profile first, got %q", profiles[0].ID)
	}

	squats, err := repo.ListByExercise(exercise.KindSquat)
	if err != nil {
		t.Fatalf("failed to list squat profiles: %v", err)
	}
	if len(squats) != 2 {
		t.Fatalf("expected 2 squat profiles, got %d", len(squats))
	}
	for _, p := range squats {
		if p.Exercise != exercise.KindSquat {
			t.Errorf("unexpected exercise %q in squat listing", p.Exercise)
		}
	}
}

func TestProfileRepository_Update(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	p := &Profile{ID: "u", Name: "before", Exercise: exercise.KindPlank}
	if err := repo.Create(p); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}
	created := p.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	p.Name = "after"
	p.Config = json.RawMessage(`{"ready_seconds":2}`)
	if err := repo.Update(p); err != nil {
		t.Fatalf("failed to update profile: %v", err)
	}

	got, err := repo.GetByID("u")
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}
	if got.Name != "after" {
		t.Errorf("Name not updated: got %q", got.Name)
	}
	if string(got.Config) != `{"ready_seconds":2}` {
		t.Errorf("Config not updated: got %s", got.Config)
	}
	if !got.UpdatedAt.After(created) {
		t.Error("UpdatedAt should advance on update")
	}

	missing := &Profile{ID: "nope", Name: "x", Exercise: exercise.KindPlank}
	if err := repo.Update(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound updating a missing profile, got %v", err)
	}
}

func TestProfileRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Profiles()

	if err := repo.Create(&Profile{ID: "d", Name: "doomed", Exercise: exercise.KindPushup}); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	if err := repo.Delete("d"); err != nil {
		t.Fatalf("failed to delete profile: %v", err)
	}
	if _, err := repo.GetByID("d"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete("d"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}
