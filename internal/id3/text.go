package id3

import (
	"bytes"
	"unicode/utf16"
	"unicode/utf8"
)

// ID3v2 text encoding bytes.
const (
	encLatin1  = 0 // ISO-8859-1
	encUTF16   = 1 // UTF-16 with BOM
	encUTF16BE = 2 // UTF-16BE, ID3v2.4 only
	encUTF8    = 3 // UTF-8, ID3v2.4 only
)

// decodeText decodes frame text according to its encoding byte, stripping
// any trailing null terminator.
func decodeText(data []byte, encoding byte) string {
	if len(data) == 0 {
		return ""
	}

	var s string
	switch encoding {
	case encUTF16:
		s = decodeUTF16BOM(data)
	case encUTF16BE:
		s = decodeUTF16Pairs(data, false)
	case encUTF8:
		if utf8.Valid(data) {
			s = string(data)
			break
		}
		fallthrough
	default: // Latin-1, also the safest guess for unknown encodings.
		s = decodeLatin1(data)
	}

	return trimTrailingNulls(s)
}

func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func decodeUTF16BOM(data []byte) string {
	if len(data) < 2 {
		return ""
	}
	switch {
	case data[0] == 0xFF && data[1] == 0xFE:
		return decodeUTF16Pairs(data[2:], true)
	case data[0] == 0xFE && data[1] == 0xFF:
		return decodeUTF16Pairs(data[2:], false)
	}
	// Missing BOM; the spec default is big-endian.
	return decodeUTF16Pairs(data, false)
}

func decodeUTF16Pairs(data []byte, littleEndian bool) string {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	u16 := make([]uint16, len(data)/2)
	for i := range u16 {
		if littleEndian {
			u16[i] = uint16(data[i*2]) | uint16(data[i*2+1])<<8
		} else {
			u16[i] = uint16(data[i*2])<<8 | uint16(data[i*2+1])
		}
	}
	return string(utf16.Decode(u16))
}

func trimTrailingNulls(s string) string {
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}

// encodeText picks the narrowest ID3v2.3 encoding for s: Latin-1 when every
// rune fits in a single byte, otherwise UTF-16 with a little-endian BOM.
func encodeText(s string) (byte, []byte) {
	if fitsLatin1(s) {
		return encLatin1, encodeLatin1(s)
	}

	buf := []byte{0xFF, 0xFE}
	for _, u := range utf16.Encode([]rune(s)) {
		buf = append(buf, byte(u), byte(u>>8))
	}
	return encUTF16, buf
}

func fitsLatin1(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

func encodeLatin1(s string) []byte {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		buf = append(buf, byte(r))
	}
	return buf
}

// terminatorSize returns the width of a null terminator for the encoding.
func terminatorSize(encoding byte) int {
	if encoding == encUTF16 || encoding == encUTF16BE {
		return 2
	}
	return 1
}

// findTerminator locates the null terminator for the encoding, returning -1
// when none is present.
func findTerminator(data []byte, encoding byte) int {
	if terminatorSize(encoding) == 1 {
		return bytes.IndexByte(data, 0)
	}
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			return i
		}
	}
	return -1
}
