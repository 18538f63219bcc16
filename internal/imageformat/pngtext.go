package imageformat

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// maxInflatedText caps decompressed zTXt/iTXt payloads.
const maxInflatedText = 16 << 20

var errBadTextChunk = errors.New("malformed text chunk")

// TextChunk is a decoded tEXt, zTXt or iTXt chunk.
type TextChunk struct {
	Type              string
	Keyword           string
	Text              string
	Compressed        bool
	LanguageTag       string
	TranslatedKeyword string
}

// DecodeText decodes the payload of a tEXt, zTXt or iTXt chunk.
func DecodeText(c Chunk) (TextChunk, error) {
	nul := bytes.IndexByte(c.Data, 0)
	if nul <= 0 {
		return TextChunk{}, fmt.Errorf("%s: missing keyword: %w", c.Type, errBadTextChunk)
	}
	tc := TextChunk{Type: c.Type, Keyword: latin1(c.Data[:nul])}
	rest := c.Data[nul+1:]

	switch c.Type {
	case "tEXt":
		tc.Text = textString(rest)
	case "zTXt":
		if len(rest) < 1 || rest[0] != 0 {
			return TextChunk{}, fmt.Errorf("zTXt: unknown compression method: %w", errBadTextChunk)
		}
		raw, err := inflate(rest[1:])
		if err != nil {
			return TextChunk{}, fmt.Errorf("zTXt %q: %w", tc.Keyword, err)
		}
		tc.Compressed = true
		tc.Text = textString(raw)
	case "iTXt":
		if len(rest) < 2 {
			return TextChunk{}, fmt.Errorf("iTXt: truncated flags: %w", errBadTextChunk)
		}
		flag, method := rest[0], rest[1]
		rest = rest[2:]
		lang, rest, ok := cutNul(rest)
		if !ok {
			return TextChunk{}, fmt.Errorf("iTXt: truncated language tag: %w", errBadTextChunk)
		}
		translated, rest, ok := cutNul(rest)
		if !ok {
			return TextChunk{}, fmt.Errorf("iTXt: truncated translated keyword: %w", errBadTextChunk)
		}
		tc.LanguageTag = string(lang)
		tc.TranslatedKeyword = string(translated)
		if flag == 1 {
			if method != 0 {
				return TextChunk{}, fmt.Errorf("iTXt: unknown compression method: %w", errBadTextChunk)
			}
			raw, err := inflate(rest)
			if err != nil {
				return TextChunk{}, fmt.Errorf("iTXt %q: %w", tc.Keyword, err)
			}
			rest = raw
			tc.Compressed = true
		}
		tc.Text = string(rest)
	default:
		return TextChunk{}, fmt.Errorf("%s is not a text chunk: %w", c.Type, errBadTextChunk)
	}
	return tc, nil
}

// IsTextChunk reports whether typ is one of the three PNG text chunk types.
func IsTextChunk(typ string) bool {
	return typ == "tEXt" || typ == "zTXt" || typ == "iTXt"
}

// TextChunks decodes every text chunk, skipping the ones that fail.
func TextChunks(chunks []Chunk) []TextChunk {
	var out []TextChunk
	for _, c := range chunks {
		if !IsTextChunk(c.Type) {
			continue
		}
		tc, err := DecodeText(c)
		if err != nil {
			continue
		}
		out = append(out, tc)
	}
	return out
}

// FindText returns the text of the first text chunk with the given keyword.
func FindText(chunks []Chunk, keyword string) (string, bool) {
	for _, c := range chunks {
		if !IsTextChunk(c.Type) || !HasKeyword(c, keyword) {
			continue
		}
		if tc, err := DecodeText(c); err == nil {
			return tc.Text, true
		}
	}
	return "", false
}

// HasKeyword reports whether a text chunk's keyword equals keyword without
// decoding the payload.
func HasKeyword(c Chunk, keyword string) bool {
	return len(c.Data) > len(keyword) && c.Data[len(keyword)] == 0 &&
		string(c.Data[:len(keyword)]) == keyword
}

// NewITXtChunk builds an uncompressed iTXt chunk with empty language tag and
// translated keyword.
func NewITXtChunk(keyword, text string) Chunk {
	data := make([]byte, 0, len(keyword)+5+len(text))
	data = append(data, keyword...)
	data = append(data, 0, 0, 0) // separator, compression flag, method
	data = append(data, 0)       // language tag
	data = append(data, 0)       // translated keyword
	data = append(data, text...)
	return NewChunk("iTXt", data)
}

func cutNul(b []byte) (before, after []byte, ok bool) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return nil, nil, false
	}
	return b[:i], b[i+1:], true
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxInflatedText))
}

// textString decodes tEXt/zTXt payloads, which are Latin-1 by definition
// but are commonly written as UTF-8 by generators.
func textString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return latin1(b)
}

func latin1(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}
