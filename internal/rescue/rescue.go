// Package rescue repairs episode files whose chapter byte offsets were
// written as sentinel values. The original file is never touched: the repair
// works on a copy and rewrites its tag only when something actually changed.
package rescue

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"chaptercast/internal/id3"
)

// ErrDestinationExists is returned when the rescue target already exists.
// Overwriting a previous rescue silently would destroy the evidence of what
// the repair did, so the caller has to remove it first.
var ErrDestinationExists = errors.New("rescue destination already exists")

// Result summarizes one rescue run.
type Result struct {
	Source      string
	Destination string
	Chapters    int // chapter frames inspected
	Modified    int // chapter frames with at least one offset reset
}

// Rescuer copies and repairs tagged episode files.
type Rescuer struct {
	threshold uint32
	logger    *log.Logger
}

// NewRescuer builds a Rescuer using the given sentinel threshold. A zero
// threshold selects the default.
func NewRescuer(threshold uint32, logger *log.Logger) *Rescuer {
	if threshold == 0 {
		threshold = id3.DefaultNilOffsetThreshold
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Rescuer{threshold: threshold, logger: logger}
}

// Rescue copies src to dst and resets every sentinel chapter offset in the
// copy to zero. Offsets are judged independently, so a chapter with one
// healthy and one sentinel offset keeps the healthy value. When no chapter
// needs repair the copy is left byte-identical to the source.
func (r *Rescuer) Rescue(src, dst string) (*Result, error) {
	if _, err := os.Stat(dst); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDestinationExists, dst)
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := copyFile(src, dst); err != nil {
		return nil, err
	}

	tag, err := id3.Load(dst)
	if errors.Is(err, id3.ErrNoTag) {
		r.logger.Printf("%s has no tag, nothing to rescue", src)
		return &Result{Source: src, Destination: dst}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &Result{Source: src, Destination: dst}
	for _, chap := range tag.Chapters() {
		res.Chapters++
		fixed := false
		if id3.IsNilOffset(chap.StartOffset, r.threshold) {
			chap.StartOffset = 0
			fixed = true
		}
		if id3.IsNilOffset(chap.EndOffset, r.threshold) {
			chap.EndOffset = 0
			fixed = true
		}
		if fixed {
			res.Modified++
			r.logger.Printf("reset offsets on chapter %s", chap.ElementID)
		}
	}

	if res.Modified == 0 {
		r.logger.Printf("%s needs no repair", src)
		return res, nil
	}

	if err := id3.Save(tag, dst); err != nil {
		return nil, err
	}
	r.logger.Printf("repaired %d of %d chapters into %s", res.Modified, res.Chapters, dst)
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
		}
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return out.Close()
}
