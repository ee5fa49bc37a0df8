// Package service holds the business rules between the HTTP handlers and the
// repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"gorm.io/gorm"
)

// CommentService manages threaded comments on posts. Threads are bounded:
// a reply is rejected once its parent already sits at maxDepth, so the tree
// never grows deeper than maxDepth levels below the roots.
type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	maxDepth    int
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	ParentID *uint
	Content  string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	maxDepth int,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		maxDepth:    maxDepth,
		isAdmin:     isAdmin,
	}
}

// MaxDepth returns the deepest level a comment may occupy, with roots at 0.
func (s *CommentService) MaxDepth() int {
	return s.maxDepth
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	const maxCommentLen = 10000

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	if _, err := s.postRepo.GetByID(ctx, in.PostID, 0); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("post", in.PostID)
		}
		return nil, err
	}

	if in.ParentID != nil {
		parent, err := s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, models.NewNotFoundError("comment", *in.ParentID)
			}
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewValidationError("Parent comment belongs to a different post")
		}

		parentDepth, err := s.DepthOf(ctx, parent)
		if err != nil {
			return nil, err
		}
		if parentDepth >= s.maxDepth {
			return nil, models.NewDepthExceededError(s.maxDepth)
		}
	}

	comment := &models.Comment{
		Content:  content,
		UserID:   in.UserID,
		PostID:   in.PostID,
		ParentID: in.ParentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		// The post or parent can be deleted between the checks above and the
		// insert's locked re-read. A deleted post takes its comments with it,
		// so for replies the parent is the resource to report.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if in.ParentID != nil {
				return nil, models.NewNotFoundError("comment", *in.ParentID)
			}
			return nil, models.NewNotFoundError("post", in.PostID)
		}
		return nil, err
	}

	kind := "root"
	if in.ParentID != nil {
		kind = "reply"
	}
	middleware.CommentsCreated.WithLabelValues(kind).Inc()

	return s.commentRepo.GetByID(ctx, comment.ID)
}

// DepthOf walks parent pointers up to the root and returns the comment's
// level, with roots at 0. A revisited id means the rows form a cycle, which
// is reported as an internal error rather than looping forever.
func (s *CommentService) DepthOf(ctx context.Context, comment *models.Comment) (int, error) {
	depth := 0
	visited := map[uint]bool{comment.ID: true}

	current := comment
	for current.ParentID != nil {
		parentID := *current.ParentID
		if visited[parentID] {
			return 0, models.NewInternalError(fmt.Errorf("comment tree contains a cycle at id %d", parentID))
		}
		visited[parentID] = true

		parent, err := s.commentRepo.GetByID(ctx, parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, models.NewInternalError(fmt.Errorf("comment %d references missing parent %d", current.ID, parentID))
			}
			return 0, err
		}
		depth++
		current = parent
	}

	return depth, nil
}

// ListRootComments returns a page of top-level comments for a post plus the
// total number of roots.
func (s *CommentService) ListRootComments(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, int64, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, 0); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, models.NewNotFoundError("post", postID)
		}
		return nil, 0, err
	}

	comments, err := s.commentRepo.ListRootsByPost(ctx, postID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.commentRepo.CountRootsByPost(ctx, postID)
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// ListReplies returns the direct children of a comment, oldest first.
func (s *CommentService) ListReplies(ctx context.Context, commentID uint) ([]*models.Comment, error) {
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("comment", commentID)
		}
		return nil, err
	}
	return s.commentRepo.ListReplies(ctx, commentID)
}

func (s *CommentService) GetComment(ctx context.Context, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("comment", commentID)
		}
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes the comment and its whole reply subtree. Only the
// author or an admin may delete. Returns the number of comments removed.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (int64, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, models.NewNotFoundError("comment", in.CommentID)
		}
		return 0, err
	}

	if comment.UserID != in.UserID {
		if s.isAdmin == nil {
			return 0, models.NewPermissionError("You can only delete your own comments")
		}
		admin, err := s.isAdmin(ctx, in.UserID)
		if err != nil {
			return 0, err
		}
		if !admin {
			return 0, models.NewPermissionError("You can only delete your own comments")
		}
	}

	removed, err := s.commentRepo.DeleteSubtree(ctx, in.CommentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, models.NewNotFoundError("comment", in.CommentID)
		}
		return 0, err
	}
	return removed, nil
}
