// Package encoder merges ordered audio segments into a single MP3 by
// driving an external ffmpeg binary.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// DefaultBitrate is used when the caller does not specify one.
const DefaultBitrate = "128k"

// Concatenator merges an ordered file list into one MP3 at a target bitrate.
type Concatenator interface {
	Concat(ctx context.Context, inputs []string, output, bitrate string) error
}

// Option configures the FFmpeg concatenator.
type Option func(*FFmpeg)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.binary = binary
		}
	}
}

// FFmpeg wraps the ffmpeg command-line encoder using its concat demuxer,
// re-encoding to a consistent bitrate so mixed-source segments join cleanly.
type FFmpeg struct {
	binary string
	logger *log.Logger
}

// NewFFmpeg constructs an FFmpeg concatenator.
func NewFFmpeg(logger *log.Logger, opts ...Option) *FFmpeg {
	if logger == nil {
		logger = log.Default()
	}
	f := &FFmpeg{binary: "ffmpeg", logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Concat implements Concatenator.
func (f *FFmpeg) Concat(ctx context.Context, inputs []string, output, bitrate string) error {
	if len(inputs) == 0 {
		return errors.New("no input files to concatenate")
	}
	if output == "" {
		return errors.New("output path required")
	}
	if bitrate == "" {
		bitrate = DefaultBitrate
	}

	list, err := writeConcatList(inputs)
	if err != nil {
		return err
	}
	defer os.Remove(list)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		"-y",
		output,
	}

	f.logger.Printf("running %s concat for %d segments -> %s", f.binary, len(inputs), output)
	cmd := commandContext(ctx, f.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			f.logger.Printf("%s output:\n%s", f.binary, strings.TrimSpace(string(out)))
		}
		return fmt.Errorf("%s concat failed: %w", f.binary, err)
	}
	return nil
}

// writeConcatList writes the ffmpeg concat demuxer input list. Entries are
// single-quoted with embedded quotes escaped the way the demuxer expects.
func writeConcatList(inputs []string) (string, error) {
	tmp, err := os.CreateTemp("", "chaptercast-concat-*.txt")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, input := range inputs {
		escaped := strings.ReplaceAll(input, "'", `'\''`)
		fmt.Fprintf(&sb, "file '%s'\n", escaped)
	}

	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
