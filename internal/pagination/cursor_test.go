package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	encoded := Encode("doc-42", ts)
	require.NotEmpty(t, encoded)

	cursor, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "doc-42", cursor.LastID)
	assert.True(t, cursor.CreatedAt.Equal(ts))
}

func TestDecode_Empty(t *testing.T) {
	cursor, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("not base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = Decode("bm8tc2VwYXJhdG9y") // "no-separator"
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestNext(t *testing.T) {
	type item struct {
		id string
		ts time.Time
	}
	items := []item{
		{"a", time.Now()},
		{"b", time.Now()},
	}

	full := Next(items, 2, func(i item) string { return i.id }, func(i item) time.Time { return i.ts })
	assert.NotEmpty(t, full)

	partial := Next(items, 5, func(i item) string { return i.id }, func(i item) time.Time { return i.ts })
	assert.Empty(t, partial)

	empty := Next(nil, 2, func(i item) string { return i.id }, func(i item) time.Time { return i.ts })
	assert.Empty(t, empty)
}
