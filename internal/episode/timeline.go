package episode

import (
	"fmt"

	"chaptercast/internal/models"
	"chaptercast/internal/playlist"
)

// BuildTimeline converts an ordered segment list into a contiguous chapter
// list: the first chapter starts at 0 and each chapter starts where the
// previous one ended. A segment with unknown duration yields a zero-width
// chapter instead of stalling the timeline.
//
// Element ids are positional ("ch0", "ch1", ...) and must stay in step with
// the table of contents written from the same list.
func BuildTimeline(segments []models.Segment) []models.Chapter {
	chapters := make([]models.Chapter, 0, len(segments))

	var cursor int64
	for i, seg := range segments {
		title := seg.Title
		if seg.IsVoiceOver() {
			title = playlist.StripDatePrefix(title, seg.DateCode)
		}

		end := cursor + seg.DurationMS
		chapters = append(chapters, models.Chapter{
			ElementID:   fmt.Sprintf("ch%d", i),
			StartTimeMS: cursor,
			EndTimeMS:   end,
			Title:       title,
		})
		cursor = end
	}

	return chapters
}
