package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn          func(context.Context, *models.Post) error
	getByIDFn         func(context.Context, uint, uint) (*models.Post, error)
	getByUserIDFn     func(context.Context, uint, int, int, uint) ([]*models.Post, error)
	listFn            func(context.Context, int, int, uint) ([]*models.Post, error)
	countFn           func(context.Context) (int64, error)
	searchFn          func(context.Context, string, int, int, uint) ([]*models.Post, error)
	updateFn          func(context.Context, *models.Post) error
	deleteFn          func(context.Context, uint) error
	isLikedFn         func(context.Context, uint, uint) (bool, error)
	getLikedPostIDsFn func(context.Context, uint, []uint) ([]uint, error)
	likeFn            func(context.Context, uint, uint) error
	unlikeFn          func(context.Context, uint, uint) error
	countLikesFn      func(context.Context, uint) (int64, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, currentUserID)
}
func (s *postRepoStub) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.getByUserIDFn(ctx, userID, limit, offset, currentUserID)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.listFn(ctx, limit, offset, currentUserID)
}
func (s *postRepoStub) Count(ctx context.Context) (int64, error) {
	return s.countFn(ctx)
}
func (s *postRepoStub) Search(ctx context.Context, query string, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.searchFn(ctx, query, limit, offset, currentUserID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	return s.isLikedFn(ctx, userID, postID)
}
func (s *postRepoStub) GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	return s.getLikedPostIDsFn(ctx, userID, postIDs)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) error {
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) error {
	return s.unlikeFn(ctx, userID, postID)
}
func (s *postRepoStub) CountLikes(ctx context.Context, postID uint) (int64, error) {
	return s.countLikesFn(ctx, postID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:          func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:         func(_ context.Context, _, _ uint) (*models.Post, error) { return &models.Post{}, nil },
		getByUserIDFn:     func(_ context.Context, _ uint, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		listFn:            func(_ context.Context, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		countFn:           func(_ context.Context) (int64, error) { return 0, nil },
		searchFn:          func(_ context.Context, _ string, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		updateFn:          func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:          func(_ context.Context, _ uint) error { return nil },
		isLikedFn:         func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		getLikedPostIDsFn: func(_ context.Context, _ uint, _ []uint) ([]uint, error) { return nil, nil },
		likeFn:            func(_ context.Context, _, _ uint) error { return nil },
		unlikeFn:          func(_ context.Context, _, _ uint) error { return nil },
		countLikesFn:      func(_ context.Context, _ uint) (int64, error) { return 0, nil },
	}
}

// assertErrorCode asserts that err is an AppError with the given code.
func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertErrorCode(t, err, models.CodeValidation)
}

func assertPermissionError(t *testing.T, err error) {
	t.Helper()
	assertErrorCode(t, err, models.CodePermission)
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	svc := NewPostService(noopPostRepo(), nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreatePostInput
	}{
		{
			name:  "empty title",
			input: CreatePostInput{UserID: 1, Content: "some content"},
		},
		{
			name:  "whitespace title",
			input: CreatePostInput{UserID: 1, Title: "   ", Content: "some content"},
		},
		{
			name:  "title too long",
			input: CreatePostInput{UserID: 1, Title: strings.Repeat("x", 101), Content: "some content"},
		},
		{
			name:  "empty content",
			input: CreatePostInput{UserID: 1, Title: "a title"},
		},
		{
			name:  "content too long",
			input: CreatePostInput{UserID: 1, Title: "a title", Content: strings.Repeat("x", 50001)},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CreatePost(ctx, tt.input)
			assertValidationError(t, err)
		})
	}
}

func TestPostService_CreatePost_Success(t *testing.T) {
	t.Parallel()

	postRepo := noopPostRepo()
	postRepo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 7
		return nil
	}
	postRepo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
		return &models.Post{ID: id, Title: "a title", Content: "some content", UserID: 1}, nil
	}

	svc := NewPostService(postRepo, nil)
	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		UserID:  1,
		Title:   "  a title  ",
		Content: "some content",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), post.ID)
}

func TestPostService_GetPost_NotFound(t *testing.T) {
	t.Parallel()

	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, _, _ uint) (*models.Post, error) {
		return nil, gorm.ErrRecordNotFound
	}

	svc := NewPostService(postRepo, nil)
	_, err := svc.GetPost(context.Background(), 99, 0)
	assertErrorCode(t, err, models.CodeNotFound)
}

func TestPostService_DeletePost_Ownership(t *testing.T) {
	t.Parallel()

	t.Run("owner can delete", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postRepo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1}, nil
		}
		svc := NewPostService(postRepo, nil)
		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 1})
		require.NoError(t, err)
	})

	t.Run("non-owner without isAdmin is forbidden", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postRepo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 10}, nil
		}
		svc := NewPostService(postRepo, nil)
		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 1})
		assertPermissionError(t, err)
	})

	t.Run("admin can delete another user's post", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postRepo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 10}, nil
		}
		isAdmin := func(_ context.Context, _ uint) (bool, error) { return true, nil }
		svc := NewPostService(postRepo, isAdmin)
		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 1})
		require.NoError(t, err)
	})
}

func TestPostService_ToggleLike(t *testing.T) {
	t.Parallel()

	t.Run("not yet liked becomes liked", func(t *testing.T) {
		t.Parallel()
		var liked bool
		postRepo := noopPostRepo()
		postRepo.isLikedFn = func(_ context.Context, _, _ uint) (bool, error) { return liked, nil }
		postRepo.likeFn = func(_ context.Context, _, _ uint) error {
			liked = true
			return nil
		}
		postRepo.countLikesFn = func(_ context.Context, _ uint) (int64, error) {
			if liked {
				return 1, nil
			}
			return 0, nil
		}

		svc := NewPostService(postRepo, nil)
		result, err := svc.ToggleLike(context.Background(), 1, 1)
		require.NoError(t, err)
		assert.True(t, result.Liked)
		assert.Equal(t, int64(1), result.Count)
	})

	t.Run("liked becomes unliked", func(t *testing.T) {
		t.Parallel()
		liked := true
		postRepo := noopPostRepo()
		postRepo.isLikedFn = func(_ context.Context, _, _ uint) (bool, error) { return liked, nil }
		postRepo.unlikeFn = func(_ context.Context, _, _ uint) error {
			liked = false
			return nil
		}
		postRepo.countLikesFn = func(_ context.Context, _ uint) (int64, error) { return 0, nil }

		svc := NewPostService(postRepo, nil)
		result, err := svc.ToggleLike(context.Background(), 1, 1)
		require.NoError(t, err)
		assert.False(t, result.Liked)
		assert.Equal(t, int64(0), result.Count)
	})

	t.Run("double toggle restores original state", func(t *testing.T) {
		t.Parallel()
		var liked bool
		postRepo := noopPostRepo()
		postRepo.isLikedFn = func(_ context.Context, _, _ uint) (bool, error) { return liked, nil }
		postRepo.likeFn = func(_ context.Context, _, _ uint) error {
			liked = true
			return nil
		}
		postRepo.unlikeFn = func(_ context.Context, _, _ uint) error {
			liked = false
			return nil
		}
		postRepo.countLikesFn = func(_ context.Context, _ uint) (int64, error) {
			if liked {
				return 1, nil
			}
			return 0, nil
		}

		svc := NewPostService(postRepo, nil)
		ctx := context.Background()

		first, err := svc.ToggleLike(ctx, 1, 1)
		require.NoError(t, err)
		assert.True(t, first.Liked)

		second, err := svc.ToggleLike(ctx, 1, 1)
		require.NoError(t, err)
		assert.False(t, second.Liked)
		assert.Equal(t, int64(0), second.Count)
	})

	t.Run("duplicate insert race resolves as liked", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postRepo.isLikedFn = func(_ context.Context, _, _ uint) (bool, error) { return false, nil }
		postRepo.likeFn = func(_ context.Context, _, _ uint) error {
			// Another request inserted the row between IsLiked and Like.
			return gorm.ErrDuplicatedKey
		}
		postRepo.countLikesFn = func(_ context.Context, _ uint) (int64, error) { return 1, nil }

		svc := NewPostService(postRepo, nil)
		result, err := svc.ToggleLike(context.Background(), 1, 1)
		require.NoError(t, err)
		assert.True(t, result.Liked)
		assert.Equal(t, int64(1), result.Count)
	})

	t.Run("missing post is not found", func(t *testing.T) {
		t.Parallel()
		postRepo := noopPostRepo()
		postRepo.getByIDFn = func(_ context.Context, _, _ uint) (*models.Post, error) {
			return nil, gorm.ErrRecordNotFound
		}
		svc := NewPostService(postRepo, nil)
		_, err := svc.ToggleLike(context.Background(), 1, 99)
		assertErrorCode(t, err, models.CodeNotFound)
	})
}

func TestPostService_SearchPosts_EmptyQuery(t *testing.T) {
	t.Parallel()

	svc := NewPostService(noopPostRepo(), nil)
	_, err := svc.SearchPosts(context.Background(), "   ", 10, 0, 0)
	assertValidationError(t, err)
}
