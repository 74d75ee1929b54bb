package agenda

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileSelectionStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "selection.json")
	store := NewFileSelectionStore(path)

	selected, err := store.Get("viewer-1")
	if err != nil || selected != nil {
		t.Fatalf("expected empty store to mean personal, got %v, %v", selected, err)
	}

	bandID := "band-1"
	if err := store.Set("viewer-1", &bandID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := store.Set("viewer-2", nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	selected, err = store.Get("viewer-1")
	if err != nil || selected == nil || *selected != bandID {
		t.Fatalf("expected band-1, got %v, %v", selected, err)
	}
	selected, err = store.Get("viewer-2")
	if err != nil || selected != nil {
		t.Fatalf("expected explicit personal selection, got %v, %v", selected, err)
	}

	// A fresh store over the same file sees the persisted state.
	reopened := NewFileSelectionStore(path)
	selected, err = reopened.Get("viewer-1")
	if err != nil || selected == nil || *selected != bandID {
		t.Fatalf("expected persisted selection, got %v, %v", selected, err)
	}
}

func TestFileSelectionStoreToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "selection.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := NewFileSelectionStore(path)
	selected, err := store.Get("viewer-1")
	if err != nil || selected != nil {
		t.Fatalf("expected corrupt file to read as empty, got %v, %v", selected, err)
	}

	bandID := "band-1"
	if err := store.Set("viewer-1", &bandID); err != nil {
		t.Fatalf("expected write to recover the file, got %v", err)
	}
	selected, err = store.Get("viewer-1")
	if err != nil || selected == nil || *selected != bandID {
		t.Fatalf("expected recovered selection, got %v, %v", selected, err)
	}
}

func TestMemorySelectionStore(t *testing.T) {
	store := NewMemorySelectionStore()
	bandID := "band-1"

	if err := store.Set("viewer-1", &bandID); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	selected, err := store.Get("viewer-1")
	if err != nil || selected == nil || *selected != bandID {
		t.Fatalf("expected band-1, got %v, %v", selected, err)
	}

	if err := store.Set("viewer-1", nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	selected, err = store.Get("viewer-1")
	if err != nil || selected != nil {
		t.Fatalf("expected personal, got %v, %v", selected, err)
	}
}
