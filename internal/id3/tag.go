// Package id3 reads and writes ID3v2 tags, including the CHAP/CTOC chapter
// frames used by chapterized podcast episodes. Tags are loaded as a flat
// frame list; frames the package does not model are preserved verbatim so a
// load/save cycle keeps every tag the file carried.
package id3

import (
	"errors"
	"fmt"
)

// TOCElementID is the element id of the canonical top-level table of
// contents written by this package.
const TOCElementID = "TOC"

// ErrNoTag is returned by Load when the file carries no ID3v2 tag at all.
// This is not a parse failure; callers typically start a fresh tag.
var ErrNoTag = errors.New("no ID3v2 tag present")

// ParseError reports structurally malformed tag data, as opposed to a
// missing tag.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed ID3 tag in %s: %s", e.Path, e.Reason)
}

// Frame is a single top-level ID3v2 frame.
type Frame interface {
	// FrameID returns the 4-character ID3v2 frame identifier.
	FrameID() string
}

// TextFrame is a standard text information frame (TIT2, TPE1, TALB, ...).
type TextFrame struct {
	ID   string
	Text string
}

func (f *TextFrame) FrameID() string { return f.ID }

// PictureFrame is an attached picture (APIC), either at tag level or
// embedded inside a chapter frame.
type PictureFrame struct {
	MIME        string
	PictureType byte
	Description string
	Data        []byte
}

func (f *PictureFrame) FrameID() string { return "APIC" }

// ChapterFrame is a CHAP frame: a titled time range with two legacy byte
// offsets and optional embedded artwork. Unrecognized subframes are kept in
// Extra and written back untouched.
type ChapterFrame struct {
	ElementID   string
	StartTimeMS uint32
	EndTimeMS   uint32
	StartOffset uint32
	EndOffset   uint32
	Title       string // TIT2 subframe text, empty when absent
	Image       *PictureFrame
	Extra       []*RawFrame
}

func (f *ChapterFrame) FrameID() string { return "CHAP" }

// TOCFrame is a CTOC frame: the ordered index of chapter element ids.
type TOCFrame struct {
	ElementID string
	TopLevel  bool
	Ordered   bool
	ChildIDs  []string
}

func (f *TOCFrame) FrameID() string { return "CTOC" }

// RawFrame carries any frame this package does not interpret.
type RawFrame struct {
	ID   string
	Data []byte
}

func (f *RawFrame) FrameID() string { return f.ID }

// Tag is a parsed ID3v2 tag: an ordered frame list plus the major version it
// was read with. Save always writes version 2.3 regardless of Version.
type Tag struct {
	Version byte
	Frames  []Frame
}

// NewTag returns an empty tag ready for frames.
func NewTag() *Tag {
	return &Tag{Version: savedVersion}
}

// Text returns the text of the first frame with the given id, or "".
func (t *Tag) Text(id string) string {
	for _, f := range t.Frames {
		if tf, ok := f.(*TextFrame); ok && tf.ID == id {
			return tf.Text
		}
	}
	return ""
}

// SetText replaces the first text frame with the given id, appending a new
// frame when none exists.
func (t *Tag) SetText(id, text string) {
	for _, f := range t.Frames {
		if tf, ok := f.(*TextFrame); ok && tf.ID == id {
			tf.Text = text
			return
		}
	}
	t.Frames = append(t.Frames, &TextFrame{ID: id, Text: text})
}

// SetTextIfAbsent adds a text frame only when no frame with that id carries a
// non-empty value already. It reports whether the frame was written.
func (t *Tag) SetTextIfAbsent(id, text string) bool {
	if t.Text(id) != "" {
		return false
	}
	t.SetText(id, text)
	return true
}

// Chapters returns every CHAP frame in storage order.
func (t *Tag) Chapters() []*ChapterFrame {
	var chaps []*ChapterFrame
	for _, f := range t.Frames {
		if c, ok := f.(*ChapterFrame); ok {
			chaps = append(chaps, c)
		}
	}
	return chaps
}

// TOCs returns every CTOC frame in storage order.
func (t *Tag) TOCs() []*TOCFrame {
	var tocs []*TOCFrame
	for _, f := range t.Frames {
		if c, ok := f.(*TOCFrame); ok {
			tocs = append(tocs, c)
		}
	}
	return tocs
}

// FrontCover returns the first tag-level attached picture, or nil. Pictures
// embedded in chapter frames are not considered.
func (t *Tag) FrontCover() *PictureFrame {
	for _, f := range t.Frames {
		if p, ok := f.(*PictureFrame); ok {
			return p
		}
	}
	return nil
}

// SetFrontCover replaces the first tag-level picture, appending when the tag
// has none.
func (t *Tag) SetFrontCover(pic *PictureFrame) {
	for i, f := range t.Frames {
		if _, ok := f.(*PictureFrame); ok {
			t.Frames[i] = pic
			return
		}
	}
	t.Frames = append(t.Frames, pic)
}

// DropChapterFrames removes every CHAP and CTOC frame, leaving all other
// frames in place. Used before writing a fresh chapter table.
func (t *Tag) DropChapterFrames() {
	kept := t.Frames[:0]
	for _, f := range t.Frames {
		switch f.(type) {
		case *ChapterFrame, *TOCFrame:
		default:
			kept = append(kept, f)
		}
	}
	t.Frames = kept
}

// FrameCounts returns the number of frames per frame id.
func (t *Tag) FrameCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range t.Frames {
		counts[f.FrameID()]++
	}
	return counts
}
