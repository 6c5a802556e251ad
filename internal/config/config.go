package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"chaptercast/internal/id3"
)

const (
	defaultListenAddr        = "127.0.0.1:8080"
	defaultRefreshDebounceMS = 500
	defaultShowTitle         = "Chaptered Podcast"
	defaultShowDescription   = "Private podcast feed generated from locally built episodes."
	defaultShowLanguage      = "en"
	defaultShowAlbum         = "Podcast Episode"
	defaultFFmpegBinary      = "ffmpeg"
)

// ResolveEpisodesRoot returns the directory that holds built episode files
// and that the server scans for its feed. The directory is created when it
// does not yet exist.
func ResolveEpisodesRoot() (string, error) {
	dir := strings.TrimSpace(os.Getenv("CHAPTERCAST_EPISODES_DIR"))
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(cwd, "episodes")
	}

	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", err
	}

	return abs, nil
}

// ListenAddr returns the TCP address the HTTP server should bind to.
func ListenAddr() string {
	addr := strings.TrimSpace(os.Getenv("CHAPTERCAST_LISTEN_ADDR"))
	if addr == "" {
		return defaultListenAddr
	}
	return addr
}

// ValidateListenAddr ensures the configured listen address is restricted to localhost.
func ValidateListenAddr(addr string) error {
	addr = strings.TrimSpace(strings.ToLower(addr))
	if strings.HasPrefix(addr, "127.0.0.1:") || strings.HasPrefix(addr, "localhost:") || strings.HasPrefix(addr, "[::1]:") {
		return nil
	}
	return errors.New("listen address must bind to localhost for security")
}

// RefreshDebounce returns the duration to wait before refreshing the library
// after file-system change events.
func RefreshDebounce() time.Duration {
	value := strings.TrimSpace(os.Getenv("CHAPTERCAST_REFRESH_DEBOUNCE_MS"))
	if value == "" {
		return time.Duration(defaultRefreshDebounceMS) * time.Millisecond
	}

	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return time.Duration(defaultRefreshDebounceMS) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

// FFmpegBinary returns the encoder executable to invoke for concatenation.
func FFmpegBinary() string {
	binary := strings.TrimSpace(os.Getenv("CHAPTERCAST_FFMPEG"))
	if binary == "" {
		return defaultFFmpegBinary
	}
	return binary
}

// Bitrate returns the configured output bitrate, empty for the encoder default.
func Bitrate() string {
	return strings.TrimSpace(os.Getenv("CHAPTERCAST_BITRATE"))
}

// NilOffsetThreshold returns the boundary above which chapter byte offsets
// are treated as corruption sentinels. Accepts decimal or 0x-prefixed hex;
// unset or unparsable values fall back to the built-in default.
func NilOffsetThreshold() uint32 {
	value := strings.TrimSpace(os.Getenv("CHAPTERCAST_NIL_OFFSET_THRESHOLD"))
	if value == "" {
		return id3.DefaultNilOffsetThreshold
	}

	parsed, err := strconv.ParseUint(value, 0, 32)
	if err != nil || parsed == 0 {
		return id3.DefaultNilOffsetThreshold
	}
	return uint32(parsed)
}

// ShowMetadata represents the static show-level metadata applied to built
// episodes and to the podcast RSS feed.
type ShowMetadata struct {
	Title       string
	Description string
	Language    string
	Author      string
	Album       string
}

type showMetadataYAML struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Language    string `yaml:"language"`
	Author      string `yaml:"author"`
	Album       string `yaml:"album"`
}

// ResolveShowMetadata returns the show metadata after applying defaults,
// YAML configuration (when enabled), and environment variable overrides.
func ResolveShowMetadata() (ShowMetadata, error) {
	meta := ShowMetadata{
		Title:       defaultShowTitle,
		Description: defaultShowDescription,
		Language:    defaultShowLanguage,
		Album:       defaultShowAlbum,
	}

	configPath := strings.TrimSpace(os.Getenv("CHAPTERCAST_SHOW_CONFIG"))
	if configPath != "" {
		resolved, err := resolveConfigPath(configPath)
		if err != nil {
			return ShowMetadata{}, err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return ShowMetadata{}, err
		}
		var yamlConfig showMetadataYAML
		if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
			return ShowMetadata{}, err
		}
		if value := strings.TrimSpace(yamlConfig.Title); value != "" {
			meta.Title = value
		}
		if value := strings.TrimSpace(yamlConfig.Description); value != "" {
			meta.Description = value
		}
		if value := strings.TrimSpace(yamlConfig.Language); value != "" {
			meta.Language = value
		}
		if value := strings.TrimSpace(yamlConfig.Author); value != "" {
			meta.Author = value
		}
		if value := strings.TrimSpace(yamlConfig.Album); value != "" {
			meta.Album = value
		}
	}

	if value := strings.TrimSpace(os.Getenv("CHAPTERCAST_SHOW_TITLE")); value != "" {
		meta.Title = value
	}
	if value := strings.TrimSpace(os.Getenv("CHAPTERCAST_SHOW_DESCRIPTION")); value != "" {
		meta.Description = value
	}
	if value := strings.TrimSpace(os.Getenv("CHAPTERCAST_SHOW_LANGUAGE")); value != "" {
		meta.Language = value
	}
	if value := strings.TrimSpace(os.Getenv("CHAPTERCAST_SHOW_AUTHOR")); value != "" {
		meta.Author = value
	}
	if value := strings.TrimSpace(os.Getenv("CHAPTERCAST_SHOW_ALBUM")); value != "" {
		meta.Album = value
	}

	return meta, nil
}

func resolveConfigPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	return filepath.Abs(path)
}
