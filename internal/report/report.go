// Package report reconstructs the canonical chapter list from a tagged
// episode file and diagnoses the known sentinel-offset corruption, producing
// the structure behind the chapter report command.
package report

import (
	"errors"

	"chaptercast/internal/id3"
	"chaptercast/internal/models"
)

// ArtState describes how a chapter's artwork should be presented.
type ArtState int

const (
	// ArtNone means the chapter has nothing to show.
	ArtNone ArtState = iota
	// ArtOK means the chapter's own artwork with healthy offsets.
	ArtOK
	// ArtCorruptedOffsets means the chapter has its own artwork but one of
	// its byte offsets is a sentinel value.
	ArtCorruptedOffsets
	// ArtFileFallback means the chapter has corrupted offsets and no art of
	// its own, so the file-level cover stands in.
	ArtFileFallback
)

func (s ArtState) String() string {
	switch s {
	case ArtOK:
		return "ok"
	case ArtCorruptedOffsets:
		return "present but offsets corrupted"
	case ArtFileFallback:
		return "using file cover art"
	default:
		return "no art"
	}
}

// Chapter is one row of the diagnostic report, in canonical order.
type Chapter struct {
	Index            int
	ElementID        string
	Title            string
	StartTimeMS      int64
	EndTimeMS        int64
	StartOffset      uint32
	EndOffset        uint32
	OffsetsCorrupted bool
	ArtState         ArtState
	Art              *models.Artwork // the artwork to display, nil for ArtNone
}

// DurationMS returns the chapter width, clamped at zero.
func (c Chapter) DurationMS() int64 {
	if c.EndTimeMS < c.StartTimeMS {
		return 0
	}
	return c.EndTimeMS - c.StartTimeMS
}

// TOCSummary describes the table of contents the reader selected.
type TOCSummary struct {
	Count     int // CTOC frames present in the tag
	Selected  bool
	ElementID string
	TopLevel  bool
	Ordered   bool
	ChildIDs  int
}

// Report is the full diagnostic structure for one episode file.
type Report struct {
	Path        string
	HasTag      bool
	ID3Version  byte
	FrameCounts map[string]int
	TOC         TOCSummary
	Chapters    []Chapter
	FileCover   *models.Artwork
}

// Diagnose reads the file's tag and produces the chapter report. A file
// without any tag yields an empty report rather than an error; malformed
// tag data is fatal.
func Diagnose(path string, threshold uint32) (*Report, error) {
	tag, err := id3.Load(path)
	if errors.Is(err, id3.ErrNoTag) {
		return &Report{Path: path}, nil
	}
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Path:        path,
		HasTag:      true,
		ID3Version:  tag.Version,
		FrameCounts: tag.FrameCounts(),
	}

	if cover := tag.FrontCover(); cover != nil {
		rep.FileCover = &models.Artwork{MIME: coverMIME(cover), Data: cover.Data}
	}

	tocs := tag.TOCs()
	rep.TOC.Count = len(tocs)
	selected := pickTOC(tocs)
	if selected != nil {
		rep.TOC.Selected = true
		rep.TOC.ElementID = selected.ElementID
		rep.TOC.TopLevel = selected.TopLevel
		rep.TOC.Ordered = selected.Ordered
		rep.TOC.ChildIDs = len(selected.ChildIDs)
	}

	for i, chap := range orderChapters(tag, selected) {
		rep.Chapters = append(rep.Chapters, buildChapter(i, chap, rep.FileCover, threshold))
	}

	return rep, nil
}

// pickTOC selects the table of contents to trust: the reserved top-level
// one, else any top-level one, else the first present.
func pickTOC(tocs []*id3.TOCFrame) *id3.TOCFrame {
	if len(tocs) == 0 {
		return nil
	}
	var best *id3.TOCFrame
	for _, toc := range tocs {
		if toc.ElementID == id3.TOCElementID && toc.TopLevel {
			return toc
		}
		if toc.TopLevel && best == nil {
			best = toc
		}
	}
	if best != nil {
		return best
	}
	return tocs[0]
}

// orderChapters walks the selected table's child ids over the tag's chapter
// frames, skipping dangling ids. When that yields nothing (no table, or no
// matches) the frames are used in storage order.
func orderChapters(tag *id3.Tag, toc *id3.TOCFrame) []*id3.ChapterFrame {
	chaps := tag.Chapters()
	if len(chaps) == 0 || toc == nil {
		return chaps
	}

	byID := make(map[string]*id3.ChapterFrame, len(chaps))
	for _, chap := range chaps {
		if _, dup := byID[chap.ElementID]; !dup {
			byID[chap.ElementID] = chap
		}
	}

	var ordered []*id3.ChapterFrame
	for _, id := range toc.ChildIDs {
		if chap, ok := byID[id]; ok {
			ordered = append(ordered, chap)
		}
	}
	if len(ordered) == 0 {
		return chaps
	}
	return ordered
}

func buildChapter(index int, chap *id3.ChapterFrame, fileCover *models.Artwork, threshold uint32) Chapter {
	c := Chapter{
		Index:            index,
		ElementID:        chap.ElementID,
		Title:            chap.Title,
		StartTimeMS:      int64(chap.StartTimeMS),
		EndTimeMS:        int64(chap.EndTimeMS),
		StartOffset:      chap.StartOffset,
		EndOffset:        chap.EndOffset,
		OffsetsCorrupted: chap.HasNilOffsets(threshold),
	}
	if c.Title == "" {
		c.Title = chap.ElementID
	}

	switch {
	case chap.Image != nil && !c.OffsetsCorrupted:
		c.ArtState = ArtOK
		c.Art = &models.Artwork{MIME: coverMIME(chap.Image), Data: chap.Image.Data}
	case chap.Image != nil:
		c.ArtState = ArtCorruptedOffsets
		c.Art = &models.Artwork{MIME: coverMIME(chap.Image), Data: chap.Image.Data}
	case c.OffsetsCorrupted && fileCover != nil:
		c.ArtState = ArtFileFallback
		c.Art = fileCover
	default:
		c.ArtState = ArtNone
	}

	return c
}

func coverMIME(pic *id3.PictureFrame) string {
	if pic.MIME == "" {
		return "image/jpeg"
	}
	return pic.MIME
}
