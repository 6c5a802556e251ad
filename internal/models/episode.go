package models

import "time"

// Episode represents one built episode file exposed by the feed server.
type Episode struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	RelativePath    string    `json:"relative_path"`
	Title           string    `json:"title"`
	Artist          *string   `json:"artist,omitempty"`
	Album           *string   `json:"album,omitempty"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	BitrateKbps     *int      `json:"bitrate_kbps,omitempty"`
	ChapterCount    int       `json:"chapter_count"`
	FilesizeBytes   int64     `json:"filesize_bytes"`
	ModifiedAt      time.Time `json:"modified_at"`
}
