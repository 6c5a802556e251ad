package library

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chaptercast/internal/id3"
)

func TestLibraryWatchesAndRefreshes(t *testing.T) {
	root := t.TempDir()
	initial := filepath.Join(root, "initial.mp3")
	if err := os.WriteFile(initial, []byte("one"), 0o644); err != nil {
		t.Fatalf("write initial file: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	lib, err := NewLibrary(root, 10*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	t.Cleanup(func() {
		if err := lib.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})

	waitFor(t, func() bool { return len(lib.ListEpisodes()) == 1 }, "initial scan")

	second := filepath.Join(root, "second.mp3")
	if err := os.WriteFile(second, []byte("two"), 0o644); err != nil {
		t.Fatalf("write second file: %v", err)
	}
	waitFor(t, func() bool { return len(lib.ListEpisodes()) == 2 }, "detect second file")

	subdir := filepath.Join(root, "2025")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}
	time.Sleep(150 * time.Millisecond)

	nested := filepath.Join(subdir, "third.mp3")
	if err := os.WriteFile(nested, []byte("three"), 0o644); err != nil {
		t.Fatalf("write nested file: %v", err)
	}
	waitFor(t, func() bool { return len(lib.ListEpisodes()) == 3 }, "detect nested file")

	renamePath := filepath.Join(root, "initial-renamed.mp3")
	if err := os.Rename(initial, renamePath); err != nil {
		t.Fatalf("rename file: %v", err)
	}
	waitFor(t, func() bool {
		for _, ep := range lib.ListEpisodes() {
			if ep.Filename == "initial-renamed.mp3" {
				return true
			}
		}
		return false
	}, "detect rename")

	if err := os.Remove(second); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	waitFor(t, func() bool { return len(lib.ListEpisodes()) == 2 }, "reflect removal")

	eps := lib.ListEpisodes()
	if len(eps) == 0 {
		t.Fatalf("expected episodes to be present")
	}
	eps[0].Title = "mutated"
	if lib.ListEpisodes()[0].Title == "mutated" {
		t.Fatalf("expected ListEpisodes to return a defensive copy")
	}
}

func TestLibraryIgnoresNonEpisodeFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("text"), 0o644); err != nil {
		t.Fatalf("write txt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "episode.mp3"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write mp3: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	lib, err := NewLibrary(root, 10*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })

	waitFor(t, func() bool { return len(lib.ListEpisodes()) == 1 }, "initial scan")

	eps := lib.ListEpisodes()
	if eps[0].Filename != "episode.mp3" {
		t.Fatalf("expected episode.mp3, got %s", eps[0].Filename)
	}

	// Adding another non-episode file should not change the count.
	if err := os.WriteFile(filepath.Join(root, "episode.m3u"), []byte("playlist"), 0o644); err != nil {
		t.Fatalf("write m3u: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if len(lib.ListEpisodes()) != 1 {
		t.Fatalf("expected still 1 episode, got %d", len(lib.ListEpisodes()))
	}
}

func TestLibrarySurfacesChapterCounts(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "chaptered.mp3")
	if err := os.WriteFile(path, []byte("\xFF\xFBaudio"), 0o644); err != nil {
		t.Fatalf("write mp3: %v", err)
	}

	tag := id3.NewTag()
	tag.SetText("TIT2", "Chaptered Episode")
	tag.Frames = append(tag.Frames,
		&id3.ChapterFrame{ElementID: "ch0", Title: "Intro", EndTimeMS: 1000},
		&id3.ChapterFrame{ElementID: "ch1", Title: "Track", StartTimeMS: 1000, EndTimeMS: 2000},
		&id3.TOCFrame{ElementID: id3.TOCElementID, TopLevel: true, Ordered: true, ChildIDs: []string{"ch0", "ch1"}},
	)
	if err := id3.Save(tag, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	lib, err := NewLibrary(root, 10*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })

	waitFor(t, func() bool { return len(lib.ListEpisodes()) == 1 }, "initial scan")

	ep := lib.ListEpisodes()[0]
	if ep.Title != "Chaptered Episode" {
		t.Fatalf("expected tagged title, got %q", ep.Title)
	}
	if ep.ChapterCount != 2 {
		t.Fatalf("expected 2 chapters, got %d", ep.ChapterCount)
	}
}

func TestLibraryEmptyDirectory(t *testing.T) {
	root := t.TempDir()

	logger := log.New(io.Discard, "", 0)
	lib, err := NewLibrary(root, 10*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })

	time.Sleep(50 * time.Millisecond)

	if len(lib.ListEpisodes()) != 0 {
		t.Fatalf("expected 0 episodes for empty dir, got %d", len(lib.ListEpisodes()))
	}

	// Adding a file to an initially empty library should be detected.
	if err := os.WriteFile(filepath.Join(root, "new.mp3"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	waitFor(t, func() bool { return len(lib.ListEpisodes()) == 1 }, "detect new file")
}

func TestLibraryPreexistingSubdirectory(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "2024", "archive")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "old.mp3"), []byte("old"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	lib, err := NewLibrary(root, 10*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })

	waitFor(t, func() bool { return len(lib.ListEpisodes()) == 1 }, "scan pre-existing nested file")

	eps := lib.ListEpisodes()
	if eps[0].Filename != "old.mp3" {
		t.Fatalf("expected old.mp3, got %s", eps[0].Filename)
	}
}

func waitFor(t *testing.T, predicate func() bool, label string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if predicate() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", label)
}
