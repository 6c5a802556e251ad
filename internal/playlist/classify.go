// Package playlist turns an exported .m3u playlist into an ordered,
// classified segment list ready for episode assembly. Voice-over tracks are
// recognized by a date-prefixed title ("20251105 Intro") matching the
// episode's date code; everything else is an ordinary music track.
package playlist

import (
	"fmt"
	"regexp"
	"strings"

	"chaptercast/internal/models"
)

var (
	voTitleRE  = regexp.MustCompile(`^(\d{8})\s+(.+)$`)
	breakNumRE = regexp.MustCompile(`break\s*(\d+)`)
)

// Classify inspects a track title and returns its segment kind, voice-over
// role and extracted date code.
//
// A title that does not match "YYYYMMDD label" is a plain track. A matching
// title whose date differs from episodeDate is also a track, but the date
// code is kept so validation can warn about a likely misplaced file. Only a
// matching date yields a voice-over, with the role inferred from the label.
func Classify(title, episodeDate string) (models.SegmentKind, string, string) {
	m := voTitleRE.FindStringSubmatch(title)
	if m == nil {
		return models.KindTrack, "", ""
	}

	dateCode := m[1]
	label := strings.ToLower(strings.TrimSpace(m[2]))

	if dateCode != episodeDate {
		return models.KindTrack, "", dateCode
	}

	var role string
	switch {
	case strings.Contains(label, "intro"):
		role = "intro"
	case strings.Contains(label, "outro"):
		role = "outro"
	case strings.Contains(label, "midbreak"):
		role = "midbreak"
	case strings.Contains(label, "break"):
		if num := breakNumRE.FindStringSubmatch(label); num != nil {
			role = fmt.Sprintf("break %s", num[1])
		} else {
			role = "break"
		}
	default:
		role = label
	}

	return models.KindVoiceOver, role, dateCode
}

// StripDatePrefix removes a leading date code and its separator from a
// voice-over title, for display purposes only.
func StripDatePrefix(title, dateCode string) string {
	if dateCode == "" || !strings.HasPrefix(title, dateCode) {
		return title
	}
	return strings.TrimLeft(title[len(dateCode):], " \t")
}
