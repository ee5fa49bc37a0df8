package repository

import (
	"context"
	"fmt"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListRootsByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error)
	CountRootsByPost(ctx context.Context, postID uint) (int64, error)
	ListReplies(ctx context.Context, parentID uint) ([]*models.Comment, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
	DeleteSubtree(ctx context.Context, rootID uint) (int64, error)
}

// commentRepository implements CommentRepository
type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// applyCommentDetails attaches the derived replies_count column.
func (r *commentRepository) applyCommentDetails(db *gorm.DB) *gorm.DB {
	return db.Select("comments.*, " +
		"(SELECT COUNT(*) FROM comments AS replies WHERE replies.parent_id = comments.id AND replies.deleted_at IS NULL) as replies_count")
}

// Create inserts the comment in a transaction that locks the post row and,
// for replies, the parent row. A concurrent cascade delete soft-deletes those
// rows under the same locks, so either it waits for this insert to commit and
// then sweeps the new comment up, or it commits first and the locked re-read
// here comes back empty (gorm.ErrRecordNotFound).
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&post, comment.PostID).Error; err != nil {
			return fmt.Errorf("post %d: %w", comment.PostID, err)
		}

		if comment.ParentID != nil {
			var parent models.Comment
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id").
				First(&parent, *comment.ParentID).Error; err != nil {
				return fmt.Errorf("parent comment %d: %w", *comment.ParentID, err)
			}
		}

		return tx.Create(comment).Error
	})
	if err != nil {
		return err
	}
	// The cached post carries comments_count.
	cache.InvalidatePost(ctx, comment.PostID)
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	err := r.applyCommentDetails(r.db.WithContext(ctx)).
		Preload("User").
		First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListRootsByPost returns top-level comments for a post, newest first.
func (r *commentRepository) ListRootsByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.applyCommentDetails(r.db.WithContext(ctx)).
		Preload("User").
		Where("post_id = ? AND parent_id IS NULL", postID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) CountRootsByPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("post_id = ? AND parent_id IS NULL", postID).
		Count(&count).Error
	return count, err
}

// ListReplies returns the direct children of a comment, oldest first so a
// thread reads top to bottom.
func (r *commentRepository) ListReplies(ctx context.Context, parentID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.applyCommentDetails(r.db.WithContext(ctx)).
		Preload("User").
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}

// DeleteSubtree removes the comment and every descendant in one transaction.
// The walk is a worklist over parent_id with a seen set, so it terminates
// even if the rows somehow form a cycle. Returns the number of comments
// removed.
//
// Every visited row is locked FOR UPDATE. Create locks the parent of a new
// reply the same way, so an insert racing this delete either commits before
// the walk reaches the parent (and the reply is collected) or blocks until
// the delete commits and then fails its own re-read.
func (r *commentRepository) DeleteSubtree(ctx context.Context, rootID uint) (int64, error) {
	var removed int64
	var postID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "post_id").
			First(&root, rootID).Error; err != nil {
			return err
		}
		postID = root.PostID

		seen := map[uint]bool{rootID: true}
		ids := []uint{rootID}
		frontier := []uint{rootID}

		for len(frontier) > 0 {
			var children []uint
			if err := tx.Model(&models.Comment{}).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("parent_id IN ?", frontier).
				Pluck("id", &children).Error; err != nil {
				return err
			}

			frontier = frontier[:0]
			for _, id := range children {
				if seen[id] {
					return fmt.Errorf("comment tree contains a cycle at id %d", id)
				}
				seen[id] = true
				ids = append(ids, id)
				frontier = append(frontier, id)
			}
		}

		res := tx.Where("id IN ?", ids).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	cache.InvalidatePost(ctx, postID)
	return removed, nil
}
