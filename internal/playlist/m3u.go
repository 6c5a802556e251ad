package playlist

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ParseM3U reads an .m3u/.m3u8 playlist and returns its audio file paths in
// order. Comment and blank lines are skipped; relative entries are resolved
// against the playlist's directory.
func ParseM3U(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	var entries []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
