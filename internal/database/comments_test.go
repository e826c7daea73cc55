package database

import (
	"context"
	"testing"
	"time"

	"shareit/internal/domain"
	"shareit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComments(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	f := seed(t, db)

	first := &models.Comment{Text: "Works great", ItemID: f.item.ID, AuthorID: f.booker.ID, Created: testNow}
	require.NoError(t, db.CreateComment(ctx, first))
	second := &models.Comment{Text: "Still good", ItemID: f.item.ID, AuthorID: f.booker.ID, Created: testNow.Add(time.Hour)}
	require.NoError(t, db.CreateComment(ctx, second))

	comments, err := db.GetCommentsByItems(ctx, []int64{f.item.ID})
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, "Booker", comments[0].AuthorName)
	assert.True(t, comments[1].Created.Equal(testNow.Add(time.Hour)))

	empty, err := db.GetCommentsByItems(ctx, []int64{999})
	require.NoError(t, err)
	assert.Empty(t, empty)

	err = db.CreateComment(ctx, &models.Comment{Text: "x", ItemID: 999, AuthorID: f.booker.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
