package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func expectPostLock(mock sqlmock.Sqlmock, postID uint) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "posts" WHERE "posts"."id" = $1 AND "posts"."deleted_at" IS NULL ORDER BY "posts"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs(postID, 1)
}

func expectCommentLock(mock sqlmock.Sqlmock, commentID uint) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "comments" WHERE "comments"."id" = $1 AND "comments"."deleted_at" IS NULL ORDER BY "comments"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs(commentID, 1)
}

func TestCommentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	comment := &models.Comment{Content: "Nice post!", PostID: 1, UserID: 1}

	mock.ExpectBegin()
	expectPostLock(mock, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), comment)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_Create_ReplyLocksParent(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	parentID := uint(5)
	comment := &models.Comment{Content: "A reply", PostID: 1, UserID: 1, ParentID: &parentID}

	mock.ExpectBegin()
	expectPostLock(mock, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	expectCommentLock(mock, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(6))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), comment)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_Create_PostRemovedConcurrently(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	comment := &models.Comment{Content: "too late", PostID: 1, UserID: 1}

	// The locked re-read finds no live post row: a cascade delete committed
	// after the caller's existence check.
	mock.ExpectBegin()
	expectPostLock(mock, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), comment)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_Create_ParentRemovedConcurrently(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	parentID := uint(5)
	comment := &models.Comment{Content: "too late", PostID: 1, UserID: 1, ParentID: &parentID}

	mock.ExpectBegin()
	expectPostLock(mock, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	expectCommentLock(mock, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), comment)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_Create_DropsCachedPost(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cache.InitRedis(mr.Addr())
	t.Cleanup(cache.Close)

	ctx := context.Background()
	require.NoError(t, cache.SetJSON(ctx, cache.PostKey(1), &models.Post{ID: 1, CommentsCount: 0}, cache.PostTTL))

	mock.ExpectBegin()
	expectPostLock(mock, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(ctx, &models.Comment{Content: "hi", PostID: 1, UserID: 1}))

	// The cached post carried a stale comments_count; it must be gone now.
	assert.False(t, mr.Exists(cache.PostKey(1)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ListRootsByPost(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	mock.ExpectQuery(`SELECT comments\.\*, .*replies_count.* FROM "comments" WHERE \(post_id = \$1 AND parent_id IS NULL\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "user_id", "replies_count"}).
			AddRow(2, "Newer root", 101, 0).
			AddRow(1, "Older root", 102, 3))

	// Preload User for each comment
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).
			AddRow(101, "user101").
			AddRow(102, "user102"))

	comments, err := repo.ListRootsByPost(context.Background(), 1, 20, 0)
	assert.NoError(t, err)
	assert.Len(t, comments, 2)
	assert.Equal(t, "Newer root", comments[0].Content)
	assert.Equal(t, int64(3), comments[1].RepliesCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectSubtreeRootLock(mock sqlmock.Sqlmock, rootID uint) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id","post_id" FROM "comments" WHERE "comments"."id" = $1 AND "comments"."deleted_at" IS NULL ORDER BY "comments"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs(rootID, 1)
}

func TestCommentRepository_DeleteSubtree(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	// Root 1 has children 2 and 3; 3 has child 4.
	mock.ExpectBegin()
	expectSubtreeRootLock(mock, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id"}).AddRow(1, 9))
	mock.ExpectQuery(`SELECT "id" FROM "comments" WHERE parent_id IN \(\$1\)`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2).AddRow(3))
	mock.ExpectQuery(`SELECT "id" FROM "comments" WHERE parent_id IN \(\$1,\$2\)`).
		WithArgs(2, 3).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
	mock.ExpectQuery(`SELECT "id" FROM "comments" WHERE parent_id IN \(\$1\)`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`UPDATE "comments" SET "deleted_at"=.+ WHERE id IN \(\$2,\$3,\$4,\$5\)`).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	removed, err := repo.DeleteSubtree(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_DeleteSubtree_LeafOnly(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	mock.ExpectBegin()
	expectSubtreeRootLock(mock, 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id"}).AddRow(7, 9))
	mock.ExpectQuery(`SELECT "id" FROM "comments" WHERE parent_id IN \(\$1\)`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`UPDATE "comments" SET "deleted_at"=.+ WHERE id IN \(\$2\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.DeleteSubtree(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_DeleteSubtree_RootRemovedConcurrently(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	mock.ExpectBegin()
	expectSubtreeRootLock(mock, 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id"}))
	mock.ExpectRollback()

	removed, err := repo.DeleteSubtree(context.Background(), 7)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.Zero(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_DeleteSubtree_DropsCachedPost(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cache.InitRedis(mr.Addr())
	t.Cleanup(cache.Close)

	ctx := context.Background()
	require.NoError(t, cache.SetJSON(ctx, cache.PostKey(9), &models.Post{ID: 9, CommentsCount: 1}, cache.PostTTL))

	mock.ExpectBegin()
	expectSubtreeRootLock(mock, 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_id"}).AddRow(7, 9))
	mock.ExpectQuery(`SELECT "id" FROM "comments" WHERE parent_id IN \(\$1\)`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`UPDATE "comments" SET "deleted_at"=.+ WHERE id IN \(\$2\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.DeleteSubtree(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.False(t, mr.Exists(cache.PostKey(9)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
