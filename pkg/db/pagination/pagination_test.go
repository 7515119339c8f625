package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2026-03-01T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows, info := BuildCursorPageInfo([]int{1, 2, 3}, 2, func(v int) string { return "last" })
	assert.Equal(t, []int{1, 2}, rows)
	assert.True(t, info.HasMore)
	assert.Equal(t, "last", info.NextPageToken)

	rows, info = BuildCursorPageInfo([]int{1}, 2, func(v int) string { return "unused" })
	assert.Equal(t, []int{1}, rows)
	assert.False(t, info.HasMore)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
}
