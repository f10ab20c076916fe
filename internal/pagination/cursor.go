// Package pagination implements opaque keyset cursors for listings
// ordered by creation time descending.
package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// ErrInvalidCursor is returned for cursors that fail to decode.
var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor marks the position after the last item of the previous page.
type Cursor struct {
	LastID    string
	CreatedAt time.Time
}

// Encode produces the opaque string form of a cursor.
func Encode(lastID string, createdAt time.Time) string {
	if lastID == "" {
		return ""
	}
	raw := lastID + "|" + createdAt.UTC().Format(time.RFC3339Nano)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Decode parses an opaque cursor. An empty cursor decodes to nil,
// meaning the first page.
func Decode(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, ErrInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{LastID: parts[0], CreatedAt: createdAt}, nil
}

// Next builds the cursor for the following page, or "" when the page
// was not full and no more items exist.
func Next[T any](items []T, limit int, id func(T) string, createdAt func(T) time.Time) string {
	if len(items) == 0 || len(items) < limit {
		return ""
	}
	last := items[len(items)-1]
	return Encode(id(last), createdAt(last))
}
