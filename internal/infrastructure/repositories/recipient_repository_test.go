package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ryzan/ryzan_service/internal/domain/errors"
)

var recipientColumnNames = []string{
	"id", "user_id", "name", "wallet_address", "email", "country", "note", "is_favorite", "created_at", "updated_at",
}

func TestRecipientRepository_ListOrdersFavoritesFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecipientRepository(db)
	userID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY is_favorite DESC, name ASC")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows(recipientColumnNames).
			AddRow(uuid.New().String(), userID.String(), "Zed", "0x00000000000000000000000000000000000000aa", nil, "FR", nil, true, now, now).
			AddRow(uuid.New().String(), userID.String(), "Ada", "0x00000000000000000000000000000000000000bb", nil, nil, nil, false, now, now))

	list, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsFavorite)
	require.NotNil(t, list[0].Country)
	assert.Equal(t, "FR", *list[0].Country)
	assert.Nil(t, list[1].Country)
}

func TestRecipientRepository_ToggleFavorite(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecipientRepository(db)
	userID, id := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SET is_favorite = NOT is_favorite")).
		WithArgs(sqlmock.AnyArg(), id, userID).
		WillReturnRows(sqlmock.NewRows([]string{"is_favorite"}).AddRow(true))

	fav, err := repo.ToggleFavorite(context.Background(), userID, id)
	require.NoError(t, err)
	assert.True(t, fav)

	mock.ExpectQuery(regexp.QuoteMeta("SET is_favorite = NOT is_favorite")).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.ToggleFavorite(context.Background(), userID, id)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRecipientRepository_DeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRecipientRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM recipients")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), uuid.New(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}
