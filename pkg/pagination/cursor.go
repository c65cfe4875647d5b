// Package pagination issues and checks the continuation tokens handed out by
// paged range reads. A token resumes exactly one read: the same source, sheet,
// cell span and page size.
package pagination

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// tokenVersion is bumped whenever the encoded layout changes; older tokens are
// rejected instead of misread.
const tokenVersion = 2

// ErrInvalid wraps every parse failure.
var ErrInvalid = errors.New("invalid cursor")

// Token is the decoded continuation cursor. It is carried as URL-safe base64
// JSON and never contains the raw path or URL it was issued for.
type Token struct {
	Version int    `json:"v"`
	Source  string `json:"src"`
	Sheet   string `json:"sheet"`
	Span    string `json:"span"`
	Offset  int    `json:"off"`
	Size    int    `json:"size"`
}

// SourceKey hashes a logical source (path or URL) to a short stable key.
func SourceKey(source string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(source)))
	return hex.EncodeToString(sum[:8])
}

// Issue builds the token for the page starting at offset.
func Issue(source, sheet, span string, offset, size int) Token {
	return Token{
		Version: tokenVersion,
		Source:  SourceKey(source),
		Sheet:   sheet,
		Span:    strings.ToUpper(strings.TrimSpace(span)),
		Offset:  offset,
		Size:    size,
	}
}

// Encode renders t as an opaque string.
func (t Token) Encode() (string, error) {
	if err := t.check(); err != nil {
		return "", err
	}
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Parse decodes an opaque cursor string.
func Parse(s string) (Token, error) {
	var t Token
	s = strings.TrimSpace(s)
	if s == "" {
		return t, fmt.Errorf("%w: empty", ErrInvalid)
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return t, fmt.Errorf("%w: not base64", ErrInvalid)
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := t.check(); err != nil {
		return t, err
	}
	return t, nil
}

// Resumes reports whether t continues the read of span on sheet in source.
// A size of zero accepts the page size the token was issued with.
func (t Token) Resumes(source, sheet, span string, size int) bool {
	if t.Source != SourceKey(source) || t.Sheet != sheet {
		return false
	}
	if !strings.EqualFold(t.Span, strings.TrimSpace(span)) {
		return false
	}
	return size == 0 || size == t.Size
}

// Next returns the offset of the page after one that started at offset and
// returned n of total rows. ok is false on the last page.
func Next(offset, n, total int) (next int, ok bool) {
	next = max(offset, 0) + max(n, 0)
	return next, n > 0 && next < total
}

func (t Token) check() error {
	switch {
	case t.Version != tokenVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalid, t.Version)
	case t.Source == "":
		return fmt.Errorf("%w: missing source", ErrInvalid)
	case t.Sheet == "":
		return fmt.Errorf("%w: missing sheet", ErrInvalid)
	case t.Span == "":
		return fmt.Errorf("%w: missing span", ErrInvalid)
	case t.Offset < 0:
		return fmt.Errorf("%w: negative offset", ErrInvalid)
	case t.Size <= 0:
		return fmt.Errorf("%w: page size must be positive", ErrInvalid)
	}
	return nil
}
