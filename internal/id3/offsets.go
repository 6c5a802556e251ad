package id3

// DefaultNilOffsetThreshold is the boundary above which a chapter byte
// offset is treated as a never-set sentinel (0xFFFFFFFF and values just
// below it) rather than a real pointer. This is a heuristic observed in
// corrupted files, not a format guarantee, so callers may override it.
const DefaultNilOffsetThreshold uint32 = 0xFFFFFF00 // 4294967040

// IsNilOffset reports whether value looks like a sentinel "no offset"
// placeholder under the given threshold.
func IsNilOffset(value, threshold uint32) bool {
	return value >= threshold
}

// HasNilOffsets reports whether either of the chapter's legacy byte offsets
// is a sentinel.
func (f *ChapterFrame) HasNilOffsets(threshold uint32) bool {
	return IsNilOffset(f.StartOffset, threshold) || IsNilOffset(f.EndOffset, threshold)
}
