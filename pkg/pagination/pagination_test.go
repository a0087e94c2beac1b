package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTripIsURLSafe(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC), ID: uuid.New()}
	encoded := Encode(in)
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	out, err := Decode(encoded)
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodeRejectsForeignCursors(t *testing.T) {
	first, err := Decode("  ")
	require.NoError(t, err)
	assert.Nil(t, first)

	for _, bad := range []string{"%%%", "bm8tc2VwYXJhdG9y", "eHx5"} {
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestTrim(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	pos := func(id uuid.UUID) Cursor { return Cursor{ID: id} }

	page, next := Trim(ids, 2, pos)
	assert.Len(t, page, 2)
	decoded, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, ids[1], decoded.ID)

	page, next = Trim(ids[:2], 2, pos)
	assert.Len(t, page, 2)
	assert.Empty(t, next)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 7, NormalizeLimit(7))
}
