package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"chaptercast/internal/id3"
)

func TestResolveWithFallbackMetadata(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "20251105 Intro.wav")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	info, err := NewFileProvider().Resolve(path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info.Title != "20251105 Intro" {
		t.Fatalf("expected title fallback to file stem, got %q", info.Title)
	}
	if info.DurationMS != 0 {
		t.Fatalf("expected unknown duration, got %d", info.DurationMS)
	}
	if info.Image != nil {
		t.Fatalf("expected no artwork")
	}
}

func TestResolveMissingFile(t *testing.T) {
	if _, err := NewFileProvider().Resolve(filepath.Join(t.TempDir(), "absent.mp3")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestResolveReadsWrittenTags(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "track.mp3")
	if err := os.WriteFile(path, []byte("\xFF\xFBnot-really-audio"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tag := id3.NewTag()
	tag.SetText("TIT2", "  Sunset   Drive ")
	tag.SetFrontCover(&id3.PictureFrame{MIME: "image/png", Data: []byte("png-bytes")})
	if err := id3.Save(tag, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := NewFileProvider().Resolve(path)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if info.Title != "Sunset Drive" {
		t.Fatalf("expected normalized tag title, got %q", info.Title)
	}
	if info.Image == nil || info.Image.MIME != "image/png" {
		t.Fatalf("expected embedded artwork, got %+v", info.Image)
	}
}

func TestBuildEpisodeWithChapterCount(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "episode.mp3")
	if err := os.WriteFile(path, []byte("\xFF\xFBaudio"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	tag := id3.NewTag()
	tag.SetText("TIT2", "Green")
	tag.SetText("TPE1", "Etheric Currents")
	tag.Frames = append(tag.Frames,
		&id3.ChapterFrame{ElementID: "ch0", EndTimeMS: 1000, Title: "Intro"},
		&id3.ChapterFrame{ElementID: "ch1", StartTimeMS: 1000, EndTimeMS: 2000, Title: "Song"},
	)
	if err := id3.Save(tag, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	episode, err := BuildEpisode(path, root)
	if err != nil {
		t.Fatalf("BuildEpisode: %v", err)
	}
	if episode.Title != "Green" {
		t.Fatalf("expected tag title, got %q", episode.Title)
	}
	if episode.Artist == nil || *episode.Artist != "Etheric Currents" {
		t.Fatalf("expected artist from tag, got %v", episode.Artist)
	}
	if episode.ChapterCount != 2 {
		t.Fatalf("expected 2 chapters, got %d", episode.ChapterCount)
	}
}

func TestBuildEpisodeWithoutTag(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	path := filepath.Join(sub, "Episode One.mp3")
	if err := os.WriteFile(path, []byte("not really an mp3"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	episode, err := BuildEpisode(path, root)
	if err != nil {
		t.Fatalf("BuildEpisode: %v", err)
	}

	relative := filepath.ToSlash(filepath.Join("sub", "Episode One.mp3"))
	if episode.ID != relative {
		t.Fatalf("expected id %s, got %s", relative, episode.ID)
	}
	if episode.Title != "Episode One" {
		t.Fatalf("expected title fallback to file stem, got %s", episode.Title)
	}
	if episode.ChapterCount != 0 {
		t.Fatalf("expected no chapters, got %d", episode.ChapterCount)
	}
	if episode.DurationSeconds != nil {
		t.Fatalf("expected duration to be nil for unparseable audio")
	}

	stat, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	expectedTime := stat.ModTime().UTC().Round(time.Second)
	if !episode.ModifiedAt.Equal(expectedTime) {
		t.Fatalf("expected modified time %s, got %s", expectedTime, episode.ModifiedAt)
	}
}
