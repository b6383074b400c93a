package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/fakeyudi/mirror/internal/filter"
	"github.com/fakeyudi/mirror/internal/session"
)

// generateTime produces an arbitrary time.Time value.
// We truncate to second precision and UTC to match JSON round-trip fidelity.
func generateTime(t *rapid.T, label string) time.Time {
	sec := rapid.Int64Range(0, 1_700_000_000).Draw(t, label)
	return time.Unix(sec, 0).UTC()
}

// generateState produces an arbitrary State value with the given id.
func generateState(t *rapid.T, id string) session.State {
	s := session.State{
		SessionID:      id,
		Directory:      rapid.StringN(1, 100, -1).Draw(t, "directory"),
		Enabled:        rapid.Bool().Draw(t, "enabled"),
		ManualOverride: rapid.Bool().Draw(t, "manual_override"),
		StartTime:      generateTime(t, "start_time"),
		Title:          rapid.StringN(0, 40, -1).Draw(t, "title"),
		ThreadID:       rapid.Int64Range(0, 1<<40).Draw(t, "thread_id"),
	}
	if rapid.Bool().Draw(t, "has_last_update") {
		lu := generateTime(t, "last_update")
		s.LastUpdateTime = &lu
	}
	if rapid.Bool().Draw(t, "has_filters") {
		s.Filters = &filter.Config{
			Mode:     rapid.SampledFrom([]filter.Mode{filter.Whitelist, filter.Blacklist}).Draw(t, "filter_mode"),
			Topics:   rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 0, 4).Draw(t, "topics"),
			Keywords: rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,8}`), 0, 4).Draw(t, "keywords"),
		}
	}
	return s
}

// generateDocument produces an arbitrary Document with unique session IDs.
func generateDocument(t *rapid.T) *session.Document {
	ids := rapid.SliceOfNDistinct(rapid.StringN(1, 36, -1), 0, 6, rapid.ID[string]).Draw(t, "ids")
	doc := &session.Document{Sessions: make([]session.State, 0, len(ids))}
	for _, id := range ids {
		doc.Sessions = append(doc.Sessions, generateState(t, id))
	}
	doc.GlobalSettings = session.GlobalSettings{
		DefaultScheduleStart: rapid.SampledFrom([]string{"", "08:00", "09:30"}).Draw(t, "default_start"),
		DefaultScheduleEnd:   rapid.SampledFrom([]string{"", "17:00", "23:15"}).Draw(t, "default_end"),
		DefaultTimezone:      rapid.StringN(0, 20, -1).Draw(t, "default_tz"),
		DefaultScheduleMode:  rapid.SampledFrom([]string{"", "auto", "manual"}).Draw(t, "default_mode"),
	}
	return doc
}

// Feature: mirror, Property 6: Registry document persistence round-trip
func TestDocumentPersistenceRoundTrip(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	rapid.Check(t, func(t *rapid.T) {
		original := generateDocument(t)

		if err := store.Save(original); err != nil {
			t.Fatalf("Save: %v", err)
		}
		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}

		if diff := cmp.Diff(original, loaded); diff != "" {
			t.Fatalf("document mismatch (-saved +loaded):\n%s", diff)
		}
	})
}

// TestLoadReturnsErrNoState verifies that Load returns ErrNoState when no
// registry file exists on disk.
func TestLoadReturnsErrNoState(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.Load()
	if !errors.Is(err, session.ErrNoState) {
		t.Errorf("expected ErrNoState, got: %v", err)
	}
}

func TestLoadCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, session.StateFile), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := session.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.Load()
	if err == nil || errors.Is(err, session.ErrNoState) {
		t.Errorf("expected a parse error, got: %v", err)
	}
}

func TestDefaultDirHonoursXDG(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir, err := session.DefaultDir()
	if err != nil {
		t.Fatalf("DefaultDir: %v", err)
	}
	if want := filepath.Join(tmp, "mirror"); dir != want {
		t.Errorf("DefaultDir = %q, want %q", dir, want)
	}
}

// TestNewStoreFailsOnUnwritableDir verifies that NewStore returns an error
// when the state directory cannot be created.
func TestNewStoreFailsOnUnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := session.NewStore(filepath.Join(blocker, "mirror")); err == nil {
		t.Fatal("expected error creating store under a regular file, got nil")
	}
}
