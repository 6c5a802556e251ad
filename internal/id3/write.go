package id3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Tags are always saved as ID3v2.3 for maximum playback compatibility, even
// when the file was read as v2.4.
const savedVersion = 3

// CTOC flag bits (%000000ab: a = top-level, b = ordered).
const (
	ctocTopLevel = 0x02
	ctocOrdered  = 0x01
)

// Padding written after the last frame so small tag edits by other tools do
// not force a full file rewrite.
const tagPadding = 1024

const maxTagSize = 1 << 28 // synchsafe sizes are 28-bit

// Save rewrites the file's ID3v2 tag in place, leaving the audio bytes
// untouched. The new tag is written to a temporary file first and renamed
// over the original, so a failed save never corrupts the target.
func Save(tag *Tag, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	start, err := audioStart(src)
	if err != nil {
		return err
	}
	if _, err := src.Seek(start, io.SeekStart); err != nil {
		return err
	}

	var body bytes.Buffer
	for _, frame := range tag.Frames {
		if err := writeFrame(&body, frame); err != nil {
			return err
		}
	}
	body.Write(make([]byte, tagPadding))

	if body.Len() >= maxTagSize {
		return fmt.Errorf("tag too large to encode: %d bytes", body.Len())
	}

	header := make([]byte, headerSize)
	copy(header, "ID3")
	header[3] = savedVersion
	encodeSynchsafe(header[6:10], uint32(body.Len()))

	tmp, err := os.CreateTemp(filepath.Dir(path), ".id3-save-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = tmp.Write(header)
	if err == nil {
		_, err = tmp.Write(body.Bytes())
	}
	if err == nil {
		_, err = io.Copy(tmp, src)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	if info, statErr := os.Stat(path); statErr == nil {
		_ = os.Chmod(tmpName, info.Mode())
	}

	return os.Rename(tmpName, path)
}

// audioStart returns the byte offset where the audio payload begins,
// skipping any existing ID3v2 tag (and v2.4 footer).
func audioStart(f *os.File) (int64, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		// Too short for a tag header means the whole file is payload.
		return 0, nil
	}
	if string(header[0:3]) != "ID3" {
		return 0, nil
	}

	start := int64(headerSize) + int64(decodeSynchsafe(header[6:10]))
	if header[5]&0x10 != 0 {
		start += headerSize // v2.4 footer
	}
	return start, nil
}

func writeFrame(buf *bytes.Buffer, frame Frame) error {
	body, err := encodeFrameBody(frame)
	if err != nil {
		return err
	}
	if len(body) >= maxTagSize {
		return fmt.Errorf("frame %s too large to encode", frame.FrameID())
	}

	header := make([]byte, headerSize)
	copy(header, frame.FrameID())
	binary.BigEndian.PutUint32(header[4:8], uint32(len(body)))
	buf.Write(header)
	buf.Write(body)
	return nil
}

func encodeFrameBody(frame Frame) ([]byte, error) {
	switch f := frame.(type) {
	case *TextFrame:
		enc, text := encodeText(f.Text)
		return append([]byte{enc}, text...), nil
	case *PictureFrame:
		return encodePictureBody(f), nil
	case *ChapterFrame:
		return encodeChapterBody(f)
	case *TOCFrame:
		return encodeTOCBody(f), nil
	case *RawFrame:
		return f.Data, nil
	}
	return nil, fmt.Errorf("unencodable frame type %T", frame)
}

func encodePictureBody(pic *PictureFrame) []byte {
	enc, desc := encodeText(pic.Description)

	var buf bytes.Buffer
	buf.WriteByte(enc)
	buf.Write(encodeLatin1(pic.MIME))
	buf.WriteByte(0)
	buf.WriteByte(pic.PictureType)
	buf.Write(desc)
	buf.Write(make([]byte, terminatorSize(enc)))
	buf.Write(pic.Data)
	return buf.Bytes()
}

func encodeChapterBody(chap *ChapterFrame) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(encodeLatin1(chap.ElementID))
	buf.WriteByte(0)

	times := make([]byte, 16)
	binary.BigEndian.PutUint32(times[0:4], chap.StartTimeMS)
	binary.BigEndian.PutUint32(times[4:8], chap.EndTimeMS)
	binary.BigEndian.PutUint32(times[8:12], chap.StartOffset)
	binary.BigEndian.PutUint32(times[12:16], chap.EndOffset)
	buf.Write(times)

	if chap.Title != "" {
		if err := writeFrame(&buf, &TextFrame{ID: "TIT2", Text: chap.Title}); err != nil {
			return nil, err
		}
	}
	if chap.Image != nil {
		if err := writeFrame(&buf, chap.Image); err != nil {
			return nil, err
		}
	}
	for _, extra := range chap.Extra {
		if err := writeFrame(&buf, extra); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func encodeTOCBody(toc *TOCFrame) []byte {
	var flags byte
	if toc.TopLevel {
		flags |= ctocTopLevel
	}
	if toc.Ordered {
		flags |= ctocOrdered
	}

	var buf bytes.Buffer
	buf.Write(encodeLatin1(toc.ElementID))
	buf.WriteByte(0)
	buf.WriteByte(flags)
	buf.WriteByte(byte(len(toc.ChildIDs)))
	for _, id := range toc.ChildIDs {
		buf.Write(encodeLatin1(id))
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// encodeSynchsafe writes v as a 28-bit synchsafe integer into dst[0:4].
func encodeSynchsafe(dst []byte, v uint32) {
	dst[0] = byte(v >> 21 & 0x7F)
	dst[1] = byte(v >> 14 & 0x7F)
	dst[2] = byte(v >> 7 & 0x7F)
	dst[3] = byte(v & 0x7F)
}
