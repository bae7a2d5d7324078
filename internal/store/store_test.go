package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestLoadMissingFileWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhook_config.json")
	s := New(path, zaptest.NewLogger(t))

	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config written to disk, got error: %v", err)
	}

	snapshot := s.GetSnapshot()
	if _, ok := snapshot.Routes["/webhook"]; !ok {
		t.Errorf("expected default /webhook route, got %#v", snapshot.Routes)
	}
	if _, ok := snapshot.Templates["trade"]; !ok {
		t.Errorf("expected default 'trade' template, got %#v", snapshot.Templates)
	}
}

func TestLoadBackfillsMissingRoutesAndTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhook_config.json")
	partial := []byte(`{"targets":[]}`)
	if err := os.WriteFile(path, partial, 0o644); err != nil {
		t.Fatalf("failed to seed partial config: %v", err)
	}

	s := New(path, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snapshot := s.GetSnapshot()
	if len(snapshot.Routes) == 0 {
		t.Error("expected routes backfilled with defaults")
	}
	if len(snapshot.Templates) == 0 {
		t.Error("expected templates backfilled with defaults")
	}
}

func TestLoadMalformedFileFallsBackToDefaultsWithoutFailing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhook_config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to seed malformed config: %v", err)
	}

	s := New(path, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatalf("expected Load to recover from malformed file without error, got %v", err)
	}

	snapshot := s.GetSnapshot()
	if _, ok := snapshot.Routes["/webhook"]; !ok {
		t.Errorf("expected in-memory default document, got %#v", snapshot)
	}
}

func TestMutatePersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhook_config.json")
	s := New(path, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err := s.Mutate(func(doc *Document) error {
		doc.Targets = append(doc.Targets, Target{ID: "t1", Name: "test", URL: "https://example.com"})
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read persisted config: %v", err)
	}
	var onDisk Document
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("persisted config is not valid JSON: %v", err)
	}
	if len(onDisk.Targets) != 1 || onDisk.Targets[0].ID != "t1" {
		t.Errorf("expected persisted target, got %#v", onDisk.Targets)
	}
}

func TestGetSnapshotIsIndependentCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhook_config.json")
	s := New(path, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snapshot := s.GetSnapshot()
	snapshot.Targets = append(snapshot.Targets, Target{ID: "mutated-locally"})

	fresh := s.GetSnapshot()
	if len(fresh.Targets) != 0 {
		t.Errorf("expected mutating a snapshot to not affect the store, got %#v", fresh.Targets)
	}
}

func TestLoadTargetWithoutEnabledKeyDefaultsEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webhook_config.json")
	partial := []byte(`{"targets":[{"id":"t1","name":"no-enabled-key","url":"https://example.com"}]}`)
	if err := os.WriteFile(path, partial, 0o644); err != nil {
		t.Fatalf("failed to seed config: %v", err)
	}

	s := New(path, zaptest.NewLogger(t))
	if err := s.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	snapshot := s.GetSnapshot()
	if len(snapshot.Targets) != 1 {
		t.Fatalf("expected 1 target, got %#v", snapshot.Targets)
	}
	if !snapshot.Targets[0].EnabledOrDefault() {
		t.Errorf("expected target with no 'enabled' key to default to enabled")
	}
}

func TestGenerateTargetIDFormat(t *testing.T) {
	id := GenerateTargetID()
	if len(id) < len("target_") || id[:len("target_")] != "target_" {
		t.Errorf("expected target_<epoch> form, got %q", id)
	}
}
