package metadata

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"

	"chaptercast/internal/id3"
	"chaptercast/internal/models"
)

// TrackInfo is the resolved metadata for one playlist source file.
type TrackInfo struct {
	Title      string
	DurationMS int64 // 0 when the duration could not be determined
	Image      *models.Artwork
}

// Provider resolves title, duration and embedded artwork for source files.
// A file without tags is not an error: the title falls back to the file
// stem, the duration to 0 and the artwork to nil. An unreadable or corrupt
// file is an error.
type Provider interface {
	Resolve(path string) (TrackInfo, error)
}

// FileProvider reads metadata straight from the audio files' own tags.
type FileProvider struct{}

// NewFileProvider returns a Provider backed by embedded file tags.
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

// Resolve implements Provider.
func (p *FileProvider) Resolve(path string) (TrackInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return TrackInfo{}, err
	}
	defer f.Close()

	info := TrackInfo{}

	meta, err := tag.ReadFrom(f)
	switch {
	case err == nil:
		info.Title = normalizeTitle(meta.Title())
		if pic := meta.Picture(); pic != nil && len(pic.Data) > 0 {
			mime := pic.MIMEType
			if mime == "" {
				mime = "image/jpeg"
			}
			info.Image = &models.Artwork{MIME: mime, Data: pic.Data}
		}
	case errors.Is(err, tag.ErrNoTagsFound):
		// Untagged files are fine; the title falls back to the filename.
	default:
		return TrackInfo{}, fmt.Errorf("read tags from %s: %w", path, err)
	}

	if info.Title == "" {
		info.Title = normalizeTitle(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if seconds, err := computeMP3Duration(path); err == nil && seconds > 0 {
			info.DurationMS = int64(math.Round(seconds * 1000))
		}
	}

	return info, nil
}

// normalizeTitle trims and collapses internal whitespace.
func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BuildEpisode constructs a metadata snapshot for a built episode file,
// including the number of chapters its tag carries.
func BuildEpisode(path string, root string) (models.Episode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Episode{}, err
	}

	relative, err := filepath.Rel(root, path)
	if err != nil {
		relative = filepath.Base(path)
	}
	relative = filepath.ToSlash(relative)

	title, artist, album, chapterCount := readEpisodeTags(path)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var durationPtr *float64
	var bitratePtr *int

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		dur, err := computeMP3Duration(path)
		if err == nil && dur > 0 {
			duration := dur
			durationPtr = &duration

			bitrate := int(math.Round((float64(info.Size()) * 8) / duration / 1000))
			if bitrate > 0 {
				bitratePtr = &bitrate
			}
		}
	}

	return models.Episode{
		ID:              relative,
		Filename:        filepath.Base(path),
		RelativePath:    relative,
		Title:           title,
		Artist:          artist,
		Album:           album,
		DurationSeconds: durationPtr,
		BitrateKbps:     bitratePtr,
		ChapterCount:    chapterCount,
		FilesizeBytes:   info.Size(),
		ModifiedAt:      info.ModTime().UTC().Round(time.Second),
	}, nil
}

func readEpisodeTags(path string) (string, *string, *string, int) {
	t, err := id3.Load(path)
	if err != nil {
		return "", nil, nil, 0
	}

	title := strings.TrimSpace(t.Text("TIT2"))
	artist := optionalString(t.Text("TPE1"))
	album := optionalString(t.Text("TALB"))
	return title, artist, album, len(t.Chapters())
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func computeMP3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total float64

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration().Seconds()
	}

	return total, nil
}
