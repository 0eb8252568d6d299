// Package typedstream extracts plain text from the legacy typedstream blobs
// stored in the archive's attributedBody column. The format is a schema-less
// object-graph serialization with no authoritative grammar, so decoding is
// two-tier: a strict structured parse first, then a byte-scan fallback for
// blobs the structured tier rejects but which still carry recoverable text.
package typedstream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

const (
	streamVersion   = 0x04
	streamSignature = "streamtyped"

	tagInline    = 0x84
	tagNil       = 0x85
	tagEndObject = 0x86
	tagRefMin    = 0x90

	len16Marker = 0x81
	len32Marker = 0x82
)

// stringClasses are the class cells whose payload is the text we want. The
// final, most specific class tag in a stream is the payload carrier; other
// cells are hierarchy metadata.
var stringClasses = map[string]bool{
	"NSString":        true,
	"NSMutableString": true,
}

// ExtractText decodes a blob to plain text. The second return is false when
// the blob holds no recoverable text; malformed input is common and never
// panics. Empty strings normalize to no text.
func ExtractText(data []byte) (string, bool) {
	if s, err := decodeStream(data); err == nil && s != "" {
		return s, true
	}
	if s, ok := scanFallback(data); ok && s != "" {
		return s, true
	}
	return "", false
}

type reader struct {
	data []byte
	pos  int
}

var errTruncated = errors.New("typedstream: truncated")

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, errTruncated
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// taggedInt reads a variable-width integer: a literal byte below 0x80, or a
// little-endian 16/32-bit value behind its width marker.
func (r *reader) taggedInt() (int, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch {
	case b < 0x80:
		return int(b), nil
	case b == len16Marker:
		raw, err := r.bytes(2)
		if err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint16(raw)), nil
	case b == len32Marker:
		raw, err := r.bytes(4)
		if err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint32(raw)), nil
	default:
		return 0, fmt.Errorf("typedstream: bad integer tag 0x%02x", b)
	}
}

// pascal reads a length-prefixed byte string.
func (r *reader) pascal() (string, error) {
	n, err := r.taggedInt()
	if err != nil {
		return "", err
	}
	raw, err := r.bytes(n)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodeStream is the structured tier. It validates the stream header, then
// walks tagged cells until it reaches a string class cell and returns that
// cell's raw-bytes payload. Any structural violation is an error; the caller
// falls through to the scan tier.
func decodeStream(data []byte) (string, error) {
	r := &reader{data: data}

	version, err := r.byte()
	if err != nil {
		return "", err
	}
	if version != streamVersion {
		return "", fmt.Errorf("typedstream: unsupported stream version 0x%02x", version)
	}
	sig, err := r.pascal()
	if err != nil {
		return "", err
	}
	if sig != streamSignature {
		return "", fmt.Errorf("typedstream: bad signature %q", sig)
	}
	if _, err := r.taggedInt(); err != nil {
		return "", fmt.Errorf("typedstream: system version: %w", err)
	}

	for {
		b, err := r.byte()
		if err != nil {
			return "", errors.New("typedstream: no string cell in stream")
		}
		switch {
		case b == tagInline:
			// An inline cell: either another tag follows (nested cell) or a
			// length-prefixed token. Class-name tokens carry trailing NUL
			// hierarchy bytes which the token read absorbs on the next pass.
			if r.pos < len(r.data) && isTag(r.data[r.pos]) {
				continue
			}
			token, err := r.pascal()
			if err != nil {
				return "", err
			}
			if stringClasses[trimClassName(token)] {
				return readStringCell(r)
			}
		case b == tagNil, b == tagEndObject, b >= tagRefMin:
			// Nil cells, object terminators and back-references carry no
			// payload of interest.
		default:
			// A bare token outside an inline cell (type strings such as "@"
			// travel this way): length byte already consumed.
			if _, err := r.bytes(int(b)); err != nil {
				return "", err
			}
		}
	}
}

func isTag(b byte) bool {
	return b == tagInline || b == tagNil || b == tagEndObject || b >= tagRefMin
}

// trimClassName strips the trailing hierarchy NUL some class cells carry.
func trimClassName(s string) string {
	if i := bytes.IndexByte([]byte(s), 0x00); i >= 0 {
		return s[:i]
	}
	return s
}

// readStringCell consumes the remainder of a string class cell: the class
// version, then tags up to the "+" raw-bytes type, then the tagged payload
// length and exactly that many UTF-8 bytes.
func readStringCell(r *reader) (string, error) {
	if _, err := r.taggedInt(); err != nil {
		return "", fmt.Errorf("typedstream: class version: %w", err)
	}
	for {
		b, err := r.byte()
		if err != nil {
			return "", err
		}
		if isTag(b) {
			continue
		}
		if b >= 0x80 {
			return "", fmt.Errorf("typedstream: bad token 0x%02x in string cell", b)
		}
		token, err := r.bytes(int(b))
		if err != nil {
			return "", err
		}
		if string(token) != "+" {
			continue
		}
		length, err := r.taggedInt()
		if err != nil {
			return "", err
		}
		payload, err := r.bytes(length)
		if err != nil {
			return "", err
		}
		if !utf8.Valid(payload) {
			return "", errors.New("typedstream: payload is not valid UTF-8")
		}
		return string(payload), nil
	}
}

// scanFallback is the heuristic tier: find the last NSString marker, skip
// the run of type descriptor bytes after it, read the length and decode the
// payload as UTF-8. Returns false for anything it cannot make sense of.
func scanFallback(data []byte) (string, bool) {
	marker := []byte("NSString")
	idx := bytes.LastIndex(data, marker)
	if idx < 0 {
		return "", false
	}
	pos := idx + len(marker)

	for pos < len(data) && isTypeDescriptor(data[pos]) {
		pos++
	}
	if pos >= len(data) {
		return "", false
	}

	var length int
	switch b := data[pos]; {
	case b == len16Marker:
		if pos+2 >= len(data) {
			return "", false
		}
		length = int(binary.LittleEndian.Uint16(data[pos+1 : pos+3]))
		pos += 3
	case b < 0x80:
		length = int(b)
		pos++
	default:
		return "", false
	}

	if length == 0 || pos+length > len(data) {
		return "", false
	}
	payload := data[pos : pos+length]
	if !utf8.Valid(payload) {
		return "", false
	}
	return string(payload), true
}

func isTypeDescriptor(b byte) bool {
	return b == 0x84 || b == 0x85 || b == 0x86 || b >= 0x90
}
