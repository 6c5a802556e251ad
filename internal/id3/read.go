package id3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const headerSize = 10

// Load parses the ID3v2 tag at the front of the file. It returns ErrNoTag
// when the file has no tag, and *ParseError when the tag data is malformed.
func Load(path string) (*Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, ErrNoTag
	}
	if string(header[0:3]) != "ID3" {
		return nil, ErrNoTag
	}

	version := header[3]
	if version != 3 && version != 4 {
		return nil, &ParseError{Path: path, Reason: fmt.Sprintf("unsupported ID3v2.%d tag", version)}
	}

	flags := header[5]
	size := decodeSynchsafe(header[6:10])

	body := make([]byte, size)
	if _, err := io.ReadFull(f, body); err != nil {
		return nil, &ParseError{Path: path, Reason: "tag shorter than declared size"}
	}

	offset := 0
	if flags&0x40 != 0 {
		// Skip the extended header. v2.4 sizes include the four size bytes,
		// v2.3 sizes exclude them.
		if len(body) < 4 {
			return nil, &ParseError{Path: path, Reason: "truncated extended header"}
		}
		if version == 4 {
			offset = int(decodeSynchsafe(body[0:4]))
		} else {
			offset = int(binary.BigEndian.Uint32(body[0:4])) + 4
		}
		if offset < 0 || offset > len(body) {
			return nil, &ParseError{Path: path, Reason: "extended header overruns tag"}
		}
	}

	tag := &Tag{Version: version}
	for offset+headerSize <= len(body) {
		if body[offset] == 0 {
			break // padding
		}

		id := string(body[offset : offset+4])
		if !validFrameID(id) {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("invalid frame id %q", id)}
		}

		frameSize := frameDataSize(body[offset+4:offset+8], version)
		dataStart := offset + headerSize
		if frameSize < 0 || dataStart+frameSize > len(body) {
			return nil, &ParseError{Path: path, Reason: fmt.Sprintf("frame %s overruns tag", id)}
		}

		data := make([]byte, frameSize)
		copy(data, body[dataStart:dataStart+frameSize])
		tag.Frames = append(tag.Frames, parseFrame(id, data, version))

		offset = dataStart + frameSize
	}

	return tag, nil
}

// parseFrame interprets the frames this package models; anything else (or
// anything that does not decode cleanly) is kept raw so it survives a save.
func parseFrame(id string, data []byte, version byte) Frame {
	switch {
	case id == "APIC":
		if pic, ok := parsePicture(data); ok {
			return pic
		}
	case id == "CHAP":
		if chap, ok := parseChapter(data, version); ok {
			return chap
		}
	case id == "CTOC":
		if toc, ok := parseTOC(data); ok {
			return toc
		}
	case id[0] == 'T' && id != "TXXX":
		if len(data) >= 1 {
			return &TextFrame{ID: id, Text: decodeText(data[1:], data[0])}
		}
	}
	return &RawFrame{ID: id, Data: data}
}

// parsePicture decodes an APIC body:
// [encoding][mime\0][picture type][description<term>][image data]
func parsePicture(data []byte) (*PictureFrame, bool) {
	if len(data) < 4 {
		return nil, false
	}

	encoding := data[0]
	rest := data[1:]

	mimeEnd := bytes.IndexByte(rest, 0)
	if mimeEnd < 0 || mimeEnd+1 >= len(rest) {
		return nil, false
	}
	mime := decodeLatin1(rest[:mimeEnd])
	rest = rest[mimeEnd+1:]

	picType := rest[0]
	rest = rest[1:]

	descEnd := findTerminator(rest, encoding)
	if descEnd < 0 {
		return nil, false
	}
	desc := decodeText(rest[:descEnd], encoding)
	imgData := rest[descEnd+terminatorSize(encoding):]

	return &PictureFrame{
		MIME:        mime,
		PictureType: picType,
		Description: desc,
		Data:        imgData,
	}, true
}

// parseChapter decodes a CHAP body:
// [element id\0][start ms][end ms][start offset][end offset][subframes...]
func parseChapter(data []byte, version byte) (*ChapterFrame, bool) {
	idEnd := bytes.IndexByte(data, 0)
	if idEnd < 0 || len(data) < idEnd+1+16 {
		return nil, false
	}

	chap := &ChapterFrame{ElementID: decodeLatin1(data[:idEnd])}
	body := data[idEnd+1:]
	chap.StartTimeMS = binary.BigEndian.Uint32(body[0:4])
	chap.EndTimeMS = binary.BigEndian.Uint32(body[4:8])
	chap.StartOffset = binary.BigEndian.Uint32(body[8:12])
	chap.EndOffset = binary.BigEndian.Uint32(body[12:16])

	// Embedded subframes use the same header layout as top-level frames.
	sub := body[16:]
	for len(sub) >= headerSize {
		if sub[0] == 0 {
			break
		}
		subID := string(sub[0:4])
		if !validFrameID(subID) {
			break
		}
		subSize := frameDataSize(sub[4:8], version)
		if subSize < 0 || headerSize+subSize > len(sub) {
			break
		}
		subData := sub[headerSize : headerSize+subSize]

		switch {
		case subID == "TIT2" && len(subData) >= 1:
			chap.Title = decodeText(subData[1:], subData[0])
		case subID == "APIC":
			if pic, ok := parsePicture(subData); ok && chap.Image == nil {
				chap.Image = pic
				break
			}
			fallthrough
		default:
			raw := make([]byte, len(subData))
			copy(raw, subData)
			chap.Extra = append(chap.Extra, &RawFrame{ID: subID, Data: raw})
		}

		sub = sub[headerSize+subSize:]
	}

	return chap, true
}

// parseTOC decodes a CTOC body:
// [element id\0][flags][entry count][child id\0]...
func parseTOC(data []byte) (*TOCFrame, bool) {
	idEnd := bytes.IndexByte(data, 0)
	if idEnd < 0 || len(data) < idEnd+3 {
		return nil, false
	}

	toc := &TOCFrame{
		ElementID: decodeLatin1(data[:idEnd]),
		TopLevel:  data[idEnd+1]&ctocTopLevel != 0,
		Ordered:   data[idEnd+1]&ctocOrdered != 0,
	}

	count := int(data[idEnd+2])
	rest := data[idEnd+3:]
	for i := 0; i < count; i++ {
		end := bytes.IndexByte(rest, 0)
		if end < 0 {
			break
		}
		toc.ChildIDs = append(toc.ChildIDs, decodeLatin1(rest[:end]))
		rest = rest[end+1:]
	}

	return toc, true
}

// frameDataSize decodes a frame size field: synchsafe for v2.4, plain
// big-endian for v2.3. Returns -1 for unrepresentable sizes.
func frameDataSize(b []byte, version byte) int {
	var size uint32
	if version == 4 {
		size = decodeSynchsafe(b)
	} else {
		size = binary.BigEndian.Uint32(b)
	}
	if size > 1<<28 {
		return -1
	}
	return int(size)
}

// decodeSynchsafe decodes a 28-bit synchsafe integer (7 bits per byte).
func decodeSynchsafe(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return uint32(b[0]&0x7F)<<21 |
		uint32(b[1]&0x7F)<<14 |
		uint32(b[2]&0x7F)<<7 |
		uint32(b[3]&0x7F)
}

func validFrameID(id string) bool {
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
