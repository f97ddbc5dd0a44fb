package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"agora/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selectVoteForUpdate = `SELECT \* FROM "votes" WHERE post_id = \$1 AND user_id = \$2 ORDER BY "votes"\."id" LIMIT \$3 FOR UPDATE`
	// Map updates are emitted in sorted column order, so the paired delta is
	// a single statement touching both counters.
	updateBothCounters = `UPDATE "posts" SET "dislikes"=dislikes \+ \$1,"likes"=likes \+ \$2,"updated_at"=\$3`
)

func voteRows(id, postID, userID uint, kind models.VoteKind) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "post_id", "user_id", "kind", "created_at", "updated_at"}).
		AddRow(id, postID, userID, string(kind), time.Now(), time.Now())
}

func TestVoteRepository_Cast_NewVote(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(selectVoteForUpdate).
		WithArgs(1, 2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "votes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectExec(updateBothCounters).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	vote, outcome, err := repo.Cast(ctx, 1, 2, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, VoteCreated, outcome)
	assert.Equal(t, models.VoteUp, vote.Kind)
	assert.Equal(t, uint(10), vote.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Cast_SameKindIsNoOp(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	// No vote UPDATE and no counter UPDATE may be issued for a repeat vote.
	mock.ExpectBegin()
	mock.ExpectQuery(selectVoteForUpdate).
		WithArgs(1, 2, 1).
		WillReturnRows(voteRows(10, 1, 2, models.VoteUp))
	mock.ExpectCommit()

	vote, outcome, err := repo.Cast(ctx, 1, 2, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, VoteUnchanged, outcome)
	assert.Equal(t, models.VoteUp, vote.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Cast_SwitchKind(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(selectVoteForUpdate).
		WithArgs(1, 2, 1).
		WillReturnRows(voteRows(10, 1, 2, models.VoteUp))
	// Kind changes in place: an UPDATE on the existing row, never a second INSERT.
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "votes" SET "kind"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// -1 likes and +1 dislikes travel together in one statement.
	mock.ExpectExec(updateBothCounters).
		WithArgs(1, -1, sqlmock.AnyArg(), 1, -1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	vote, outcome, err := repo.Cast(ctx, 1, 2, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, VoteSwitched, outcome)
	assert.Equal(t, models.VoteDown, vote.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A user with no prior vote upvotes, switches to a downvote, then repeats the
// downvote: likes moves +1 then -1, dislikes +1 once, and the repeat is a
// pure read.
func TestVoteRepository_Cast_TransitionSequence(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	// upvote from a clean slate: insert plus a +1 likes delta
	mock.ExpectBegin()
	mock.ExpectQuery(selectVoteForUpdate).
		WithArgs(5, 7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "votes"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
	mock.ExpectExec(updateBothCounters).
		WithArgs(0, 1, sqlmock.AnyArg(), 5, 1, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, outcome, err := repo.Cast(ctx, 5, 7, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, VoteCreated, outcome)

	// switch to downvote: -1 likes and +1 dislikes in one statement
	mock.ExpectBegin()
	mock.ExpectQuery(selectVoteForUpdate).
		WithArgs(5, 7, 1).
		WillReturnRows(voteRows(30, 5, 7, models.VoteUp))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "votes" SET "kind"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateBothCounters).
		WithArgs(1, -1, sqlmock.AnyArg(), 5, -1, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, outcome, err = repo.Cast(ctx, 5, 7, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, VoteSwitched, outcome)

	// repeat downvote: no writes at all
	mock.ExpectBegin()
	mock.ExpectQuery(selectVoteForUpdate).
		WithArgs(5, 7, 1).
		WillReturnRows(voteRows(30, 5, 7, models.VoteDown))
	mock.ExpectCommit()

	_, outcome, err = repo.Cast(ctx, 5, 7, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, VoteUnchanged, outcome)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Cast_CounterGuardRejects(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(selectVoteForUpdate).
		WithArgs(1, 2, 1).
		WillReturnRows(voteRows(10, 1, 2, models.VoteUp))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "votes" SET "kind"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateBothCounters).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := repo.Cast(ctx, 1, 2, models.VoteDown)
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeConflict, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Cast_StoreFailureRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(selectVoteForUpdate).
		WithArgs(1, 2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "votes"`)).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, _, err := repo.Cast(ctx, 1, 2, models.VoteUp)
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeStore, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Cast_MissingUserIsNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(selectVoteForUpdate).
		WithArgs(1, 2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "votes"`)).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	_, _, err := repo.Cast(ctx, 1, 2, models.VoteUp)
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeNotFound, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_GetByPostAndUser(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "votes" WHERE post_id = $1 AND user_id = $2 ORDER BY "votes"."id" LIMIT $3`)).
		WithArgs(1, 2, 1).
		WillReturnRows(voteRows(10, 1, 2, models.VoteDown))

	vote, err := repo.GetByPostAndUser(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.VoteDown, vote.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_GetByPostAndUser_NoVote(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "votes"`)).
		WithArgs(1, 2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	vote, err := repo.GetByPostAndUser(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, vote)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_GetAggregate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "likes","dislikes" FROM "posts" WHERE id = $1`)).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"likes", "dislikes"}).AddRow(4, 1))

	agg, err := repo.GetAggregate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &models.Aggregate{Likes: 4, Dislikes: 1}, agg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Recount(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "posts" WHERE "posts"\."id" = \$1 ORDER BY "posts"\."id" LIMIT \$2 FOR UPDATE`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "likes", "dislikes"}).AddRow(1, 9, 9))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "votes" WHERE post_id = $1 AND kind = $2`)).
		WithArgs(1, "upvote").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "votes" WHERE post_id = $1 AND kind = $2`)).
		WithArgs(1, "downvote").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "dislikes"=$1,"likes"=$2`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	agg, err := repo.Recount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &models.Aggregate{Likes: 3, Dislikes: 1}, agg)
	assert.NoError(t, mock.ExpectationsWereMet())
}
