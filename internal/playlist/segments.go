package playlist

import (
	"fmt"
	"log"
	"os"
	"strings"

	"chaptercast/internal/metadata"
	"chaptercast/internal/models"
)

// MissingSourceError reports a playlist entry that does not exist on disk.
// It is raised before any encoding work begins.
type MissingSourceError struct {
	Path string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("playlist entry not found on disk: %s", e.Path)
}

// ValidationError reports a playlist that cannot produce a valid episode:
// either no voice-over segments carry the episode's date code, or required
// roles are absent among them.
type ValidationError struct {
	Date         string
	MissingRoles []string
}

func (e *ValidationError) Error() string {
	if len(e.MissingRoles) == 0 {
		return fmt.Sprintf("no voice-over segments found for episode date %s; voice-over tracks must be titled like %q", e.Date, e.Date+" Intro")
	}
	return fmt.Sprintf("missing required voice-over roles for episode %s: %s", e.Date, strings.Join(e.MissingRoles, ", "))
}

// BuildSegments parses the playlist, resolves each entry's metadata and
// classifies it. Every entry must exist on disk; a resolvable but untagged
// or duration-less entry only degrades its chapter, never the build.
func BuildSegments(playlistPath, episodeDate string, provider metadata.Provider, logger *log.Logger) ([]models.Segment, error) {
	if logger == nil {
		logger = log.Default()
	}

	entries, err := ParseM3U(playlistPath)
	if err != nil {
		return nil, err
	}

	segments := make([]models.Segment, 0, len(entries))
	for idx, entry := range entries {
		if info, err := os.Stat(entry); err != nil || info.IsDir() {
			return nil, &MissingSourceError{Path: entry}
		}

		info, err := provider.Resolve(entry)
		if err != nil {
			return nil, err
		}

		kind, role, dateCode := Classify(info.Title, episodeDate)
		if info.DurationMS == 0 {
			logger.Printf("warning: unknown duration for %s; its chapter will be zero width", entry)
		}

		segments = append(segments, models.Segment{
			Index:      idx,
			Kind:       kind,
			Role:       role,
			DateCode:   dateCode,
			SourcePath: entry,
			Title:      info.Title,
			DurationMS: info.DurationMS,
		})
	}

	logPlan(segments, logger)
	return segments, nil
}

func logPlan(segments []models.Segment, logger *log.Logger) {
	logger.Printf("segment plan from playlist:")
	for _, seg := range segments {
		role := ""
		if seg.Role != "" {
			role = fmt.Sprintf(" (%s)", seg.Role)
		}
		date := ""
		if seg.DateCode != "" {
			date = fmt.Sprintf(" [%s]", seg.DateCode)
		}
		logger.Printf("  #%02d: %s%s%s - %q (%.1fs)", seg.Index, strings.ToUpper(string(seg.Kind)), role, date, seg.Title, float64(seg.DurationMS)/1000)
	}
}

// Validate enforces the build contract: at least one voice-over segment for
// the episode date, and among those at least one intro and one outro.
// Voice-over-shaped titles carrying a different date code are warned about
// (a likely misplaced file) but never fail the build.
func Validate(segments []models.Segment, episodeDate string, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	var voThisEpisode []models.Segment
	for _, seg := range segments {
		if seg.DateCode != "" && seg.DateCode != episodeDate {
			logger.Printf("warning: #%02d %q carries date %s, not %s - wrong voice-over dragged into this playlist?", seg.Index, seg.Title, seg.DateCode, episodeDate)
			continue
		}
		if seg.IsVoiceOver() && seg.DateCode == episodeDate {
			voThisEpisode = append(voThisEpisode, seg)
		}
	}

	if len(voThisEpisode) == 0 {
		return &ValidationError{Date: episodeDate}
	}

	hasIntro, hasOutro := false, false
	for _, seg := range voThisEpisode {
		switch seg.Role {
		case "intro":
			hasIntro = true
		case "outro":
			hasOutro = true
		}
	}

	var missing []string
	if !hasIntro {
		missing = append(missing, "Intro")
	}
	if !hasOutro {
		missing = append(missing, "Outro")
	}
	if len(missing) > 0 {
		return &ValidationError{Date: episodeDate, MissingRoles: missing}
	}

	logger.Printf("voice-over validation for %s: %d segments, intro and outro present", episodeDate, len(voThisEpisode))
	return nil
}
