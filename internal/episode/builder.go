// Package episode assembles chapterized podcast episodes: it validates a
// classified playlist, concatenates the audio through an external encoder
// and writes the chapter table into the result's ID3 tag.
package episode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"regexp"

	"chaptercast/internal/encoder"
	"chaptercast/internal/id3"
	"chaptercast/internal/metadata"
	"chaptercast/internal/models"
	"chaptercast/internal/playlist"
)

var dateCodeRE = regexp.MustCompile(`^\d{8}$`)

// ShowDefaults carries the global tag values applied to an episode when the
// output file does not already provide them.
type ShowDefaults struct {
	Artist string
	Album  string
}

// BuildRequest describes one episode build.
type BuildRequest struct {
	EpisodeDate  string // 8-digit date code, e.g. "20251105"
	EpisodeTitle string
	PlaylistPath string
	OutputPath   string
	DefaultImage string // optional episode artwork path
	Bitrate      string // e.g. "128k"; encoder default when empty
}

// Builder runs the full build pipeline for one episode.
type Builder struct {
	provider metadata.Provider
	concat   encoder.Concatenator
	show     ShowDefaults
	logger   *log.Logger
}

// NewBuilder wires a Builder from its collaborators.
func NewBuilder(provider metadata.Provider, concat encoder.Concatenator, show ShowDefaults, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	if show.Album == "" {
		show.Album = "Podcast Episode"
	}
	return &Builder{provider: provider, concat: concat, show: show, logger: logger}
}

// Build validates the playlist, concatenates its audio into the output file
// and writes the chapter tag. Validation failures and missing sources are
// fatal before any file is produced. The returned chapters are the written
// timeline.
func (b *Builder) Build(ctx context.Context, req BuildRequest) ([]models.Chapter, error) {
	segments, err := playlist.BuildSegments(req.PlaylistPath, req.EpisodeDate, b.provider, b.logger)
	if err != nil {
		return nil, err
	}
	if err := playlist.Validate(segments, req.EpisodeDate, b.logger); err != nil {
		return nil, err
	}

	var defaultArt *models.Artwork
	if req.DefaultImage != "" {
		data, err := os.ReadFile(req.DefaultImage)
		if err != nil {
			return nil, fmt.Errorf("read default image: %w", err)
		}
		defaultArt = &models.Artwork{MIME: detectImageMIME(data), Data: data}
	}

	inputs := make([]string, len(segments))
	for i, seg := range segments {
		inputs[i] = seg.SourcePath
	}
	if err := b.concat.Concat(ctx, inputs, req.OutputPath, req.Bitrate); err != nil {
		return nil, err
	}

	chapters := BuildTimeline(segments)
	if err := b.writeTags(req, segments, chapters, defaultArt); err != nil {
		return nil, err
	}

	b.logger.Printf("wrote %d chapters to %s", len(chapters), req.OutputPath)
	return chapters, nil
}

// writeTags serializes the chapter table into the output file's ID3 tag,
// merging non-destructively with whatever global tags the encoder left
// behind. The tag is saved pinned to ID3v2.3.
func (b *Builder) writeTags(req BuildRequest, segments []models.Segment, chapters []models.Chapter, defaultArt *models.Artwork) error {
	tag, err := id3.Load(req.OutputPath)
	if errors.Is(err, id3.ErrNoTag) {
		tag = id3.NewTag()
	} else if err != nil {
		return err
	}

	tag.SetTextIfAbsent("TIT2", req.EpisodeTitle)
	tag.SetTextIfAbsent("TALB", b.show.Album)
	if b.show.Artist != "" {
		tag.SetTextIfAbsent("TPE1", b.show.Artist)
	}
	if dateCodeRE.MatchString(req.EpisodeDate) {
		tag.SetTextIfAbsent("TYER", req.EpisodeDate[0:4])
		tag.SetTextIfAbsent("TDAT", req.EpisodeDate[6:8]+req.EpisodeDate[4:6])
	}
	if defaultArt != nil {
		tag.SetFrontCover(&id3.PictureFrame{MIME: defaultArt.MIME, Data: defaultArt.Data})
	}

	tag.DropChapterFrames()

	childIDs := make([]string, 0, len(chapters))
	for i, ch := range chapters {
		frame := &id3.ChapterFrame{
			ElementID:   ch.ElementID,
			StartTimeMS: msToUint32(ch.StartTimeMS),
			EndTimeMS:   msToUint32(ch.EndTimeMS),
			Title:       ch.Title,
		}
		if art := b.chapterArt(segments[i], defaultArt); art != nil {
			frame.Image = &id3.PictureFrame{MIME: art.MIME, Data: art.Data}
		}
		tag.Frames = append(tag.Frames, frame)
		childIDs = append(childIDs, ch.ElementID)
	}

	toc := &id3.TOCFrame{
		ElementID: id3.TOCElementID,
		TopLevel:  true,
		Ordered:   true,
		ChildIDs:  childIDs,
	}
	tag.Frames = append(tag.Frames, toc)

	if err := verifyTOC(tag); err != nil {
		return err
	}

	return id3.Save(tag, req.OutputPath)
}

// chapterArt applies the per-chapter artwork policy: a music track uses its
// own embedded cover when it has one, otherwise the episode default; a
// voice-over only ever gets the default.
func (b *Builder) chapterArt(seg models.Segment, defaultArt *models.Artwork) *models.Artwork {
	if seg.Kind == models.KindTrack {
		if info, err := b.provider.Resolve(seg.SourcePath); err == nil && info.Image != nil {
			return info.Image
		}
		b.logger.Printf("no cover art found in %s", seg.SourcePath)
	}
	return defaultArt
}

// verifyTOC checks that the table of contents lists exactly the chapter
// frames, in order. Chapter element ids are positional, so a mismatch means
// the chapter list was reordered without regenerating ids.
func verifyTOC(tag *id3.Tag) error {
	chaps := tag.Chapters()
	tocs := tag.TOCs()
	if len(tocs) != 1 {
		return fmt.Errorf("expected exactly one table of contents, found %d", len(tocs))
	}
	ids := tocs[0].ChildIDs
	if len(ids) != len(chaps) {
		return fmt.Errorf("table of contents lists %d chapters, tag has %d", len(ids), len(chaps))
	}
	for i, chap := range chaps {
		if ids[i] != chap.ElementID {
			return fmt.Errorf("table of contents out of step at %d: %q vs %q", i, ids[i], chap.ElementID)
		}
	}
	return nil
}

func msToUint32(ms int64) uint32 {
	if ms < 0 {
		return 0
	}
	if ms > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

// detectImageMIME distinguishes the two artwork formats podcast clients
// accept; anything that is not a PNG is treated as JPEG.
func detectImageMIME(data []byte) string {
	if bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return "image/png"
	}
	return "image/jpeg"
}
