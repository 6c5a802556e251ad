package server

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chaptercast/internal/models"
)

type fakeLibrary struct {
	episodes []models.Episode
}

func (f *fakeLibrary) ListEpisodes() []models.Episode {
	return f.episodes
}

func testShowMetadata() ShowMetadata {
	return ShowMetadata{
		Title:       "Test Feed",
		Description: "Test feed description",
		Language:    "en",
		Author:      "Test Author",
	}
}

func TestHealthEndpoint(t *testing.T) {
	episodesDir := t.TempDir()
	handler := New(&fakeLibrary{}, episodesDir, testShowMetadata(), log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected status payload: %v", body)
	}
}

func TestHealthEndpointRejectsNonGET(t *testing.T) {
	episodesDir := t.TempDir()
	handler := New(&fakeLibrary{}, episodesDir, testShowMetadata(), log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestEpisodesEndpoint(t *testing.T) {
	episodes := []models.Episode{
		{
			ID:            "ep1",
			Filename:      "ep1.mp3",
			RelativePath:  "ep1.mp3",
			Title:         "Episode 1",
			ChapterCount:  7,
			FilesizeBytes: 123,
			ModifiedAt:    time.Unix(0, 0).UTC(),
		},
	}
	episodesDir := t.TempDir()
	handler := New(&fakeLibrary{episodes: episodes}, episodesDir, testShowMetadata(), log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodGet, "/episodes", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload []models.Episode
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(payload) != 1 || payload[0].ID != "ep1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload[0].ChapterCount != 7 {
		t.Fatalf("expected chapter count to round-trip, got %d", payload[0].ChapterCount)
	}
}

func TestEpisodesEndpointRejectsNonGET(t *testing.T) {
	episodesDir := t.TempDir()
	handler := New(&fakeLibrary{}, episodesDir, testShowMetadata(), log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodDelete, "/episodes", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestFeedEndpointProducesRSS(t *testing.T) {
	episodesDir := t.TempDir()
	episodes := []models.Episode{
		{
			ID:            "episode-1",
			Filename:      "episode-1.mp3",
			RelativePath:  "episode-1.mp3",
			Title:         "Episode 1",
			ChapterCount:  12,
			FilesizeBytes: 2048,
			ModifiedAt:    time.Unix(1700000000, 0).UTC(),
			DurationSeconds: func() *float64 {
				value := 321.0
				return &value
			}(),
			Artist: func() *string {
				value := "Test Artist"
				return &value
			}(),
		},
	}

	handler := New(&fakeLibrary{episodes: episodes}, episodesDir, testShowMetadata(), log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Host = "localhost:8080"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Fatalf("unexpected content type %q", ct)
	}

	var payload struct {
		Channel struct {
			Title string `xml:"title"`
			Items []struct {
				Title       string `xml:"title"`
				Description string `xml:"description"`
				Enclosure   struct {
					URL  string `xml:"url,attr"`
					Type string `xml:"type,attr"`
				} `xml:"enclosure"`
				ITunesDuration string `xml:"http://www.itunes.com/dtds/podcast-1.0.dtd duration"`
			} `xml:"item"`
		} `xml:"channel"`
	}

	if err := xml.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal rss: %v", err)
	}

	if payload.Channel.Title != "Test Feed" {
		t.Fatalf("unexpected channel title: %s", payload.Channel.Title)
	}

	if len(payload.Channel.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(payload.Channel.Items))
	}

	item := payload.Channel.Items[0]
	if item.Enclosure.URL != "http://localhost:8080/audio/episode-1.mp3" {
		t.Fatalf("unexpected enclosure URL: %s", item.Enclosure.URL)
	}
	if item.Enclosure.Type != "audio/mpeg" {
		t.Fatalf("unexpected enclosure type: %s", item.Enclosure.Type)
	}
	if item.ITunesDuration != "00:05:21" {
		t.Fatalf("unexpected itunes duration: %s", item.ITunesDuration)
	}
	if !strings.Contains(item.Description, "12 chapters") {
		t.Fatalf("expected chapter count in description, got %q", item.Description)
	}
}

func TestFeedOrdersNewestFirst(t *testing.T) {
	episodesDir := t.TempDir()
	episodes := []models.Episode{
		{ID: "old", Filename: "old.mp3", RelativePath: "old.mp3", Title: "Old",
			ModifiedAt: time.Unix(1600000000, 0).UTC()},
		{ID: "new", Filename: "new.mp3", RelativePath: "new.mp3", Title: "New",
			ModifiedAt: time.Unix(1700000000, 0).UTC()},
	}

	handler := New(&fakeLibrary{episodes: episodes}, episodesDir, testShowMetadata(), log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodGet, "/feed.xml", nil)
	req.Host = "localhost:8080"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Channel struct {
			Items []struct {
				Title string `xml:"title"`
			} `xml:"item"`
		} `xml:"channel"`
	}
	if err := xml.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal rss: %v", err)
	}
	if len(payload.Channel.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(payload.Channel.Items))
	}
	if payload.Channel.Items[0].Title != "New" || payload.Channel.Items[1].Title != "Old" {
		t.Fatalf("unexpected order: %+v", payload.Channel.Items)
	}
}

func TestAudioEndpointServesFile(t *testing.T) {
	episodesDir := t.TempDir()
	filePath := filepath.Join(episodesDir, "clip.mp3")
	if err := os.WriteFile(filePath, []byte("audio-bytes"), 0o644); err != nil {
		t.Fatalf("write audio file: %v", err)
	}

	handler := New(&fakeLibrary{}, episodesDir, testShowMetadata(), log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodGet, "/audio/clip.mp3", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "audio-bytes" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestAudioEndpointSupportsRangeRequests(t *testing.T) {
	episodesDir := t.TempDir()
	filePath := filepath.Join(episodesDir, "clip.mp3")
	if err := os.WriteFile(filePath, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("write audio file: %v", err)
	}

	handler := New(&fakeLibrary{}, episodesDir, testShowMetadata(), log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodGet, "/audio/clip.mp3", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "2345" {
		t.Fatalf("unexpected range body %q", body)
	}
}

func TestAudioEndpointPreventsTraversal(t *testing.T) {
	episodesDir := t.TempDir()
	absDir, err := filepath.Abs(episodesDir)
	if err != nil {
		t.Fatalf("abs episodes dir: %v", err)
	}

	h := &serverHandler{
		episodesRoot: absDir,
		logger:       log.New(io.Discard, "", 0),
	}

	req := httptest.NewRequest(http.MethodGet, "/audio/../secret.txt", nil)
	rec := httptest.NewRecorder()

	h.handleAudio(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for traversal attempt, got %d", rec.Code)
	}
}
