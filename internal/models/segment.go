package models

// SegmentKind distinguishes voice-over entries from ordinary music tracks.
type SegmentKind string

const (
	KindVoiceOver SegmentKind = "voice_over"
	KindTrack     SegmentKind = "track"
)

// Segment is one playlist entry after classification.
type Segment struct {
	Index      int
	Kind       SegmentKind
	Role       string // "intro", "outro", "midbreak", "break 2", ... empty for tracks
	DateCode   string // 8-digit date extracted from the title, empty when the title had none
	SourcePath string
	Title      string
	DurationMS int64 // 0 means the duration could not be determined
}

// IsVoiceOver reports whether the segment was classified as a voice-over.
func (s Segment) IsVoiceOver() bool {
	return s.Kind == KindVoiceOver
}

// Artwork is raw image bytes plus their MIME type.
type Artwork struct {
	MIME string
	Data []byte
}

// Chapter is one finalized timeline entry, derived 1:1 from a Segment.
type Chapter struct {
	ElementID   string
	StartTimeMS int64
	EndTimeMS   int64
	Title       string
	Image       *Artwork
}

// DurationMS returns the width of the chapter in milliseconds.
func (c Chapter) DurationMS() int64 {
	return c.EndTimeMS - c.StartTimeMS
}
