package repository

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// TopAuthor is an author ranked by likes received across their posts.
type TopAuthor struct {
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	LikesReceived int64  `json:"likes_received"`
}

// StatsRepository aggregates platform-wide numbers. Everything here is
// derived with COUNT/JOIN queries at read time.
type StatsRepository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountUsersSince(ctx context.Context, since time.Time) (int64, error)
	CountPosts(ctx context.Context) (int64, error)
	CountComments(ctx context.Context) (int64, error)
	CountLikes(ctx context.Context) (int64, error)
	CountActiveUsers(ctx context.Context, since time.Time) (int64, error)
	TopAuthorsByLikes(ctx context.Context, limit int) ([]TopAuthor, error)
	LatestPostAt(ctx context.Context) (*time.Time, error)
	CountPostsByUser(ctx context.Context, userID uint) (int64, error)
	CountCommentsByUser(ctx context.Context, userID uint) (int64, error)
	CountLikesReceivedByUser(ctx context.Context, userID uint) (int64, error)
	LastActivityByUser(ctx context.Context, userID uint) (*time.Time, error)
}

type statsRepository struct {
	db *gorm.DB
}

// NewStatsRepository creates a new StatsRepository
func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func (r *statsRepository) CountUsersSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

func (r *statsRepository) CountPosts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&count).Error
	return count, err
}

func (r *statsRepository) CountComments(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Count(&count).Error
	return count, err
}

func (r *statsRepository) CountLikes(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).Count(&count).Error
	return count, err
}

func (r *statsRepository) CountActiveUsers(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("last_login >= ?", since).
		Count(&count).Error
	return count, err
}

// TopAuthorsByLikes ranks authors by likes received on their posts.
func (r *statsRepository) TopAuthorsByLikes(ctx context.Context, limit int) ([]TopAuthor, error) {
	var authors []TopAuthor
	err := r.db.WithContext(ctx).
		Table("likes").
		Select("users.id as user_id, users.username, COUNT(likes.id) as likes_received").
		Joins("JOIN posts ON posts.id = likes.post_id AND posts.deleted_at IS NULL").
		Joins("JOIN users ON users.id = posts.user_id AND users.deleted_at IS NULL").
		Group("users.id, users.username").
		Order("likes_received DESC").
		Limit(limit).
		Scan(&authors).Error
	return authors, err
}

func (r *statsRepository) LatestPostAt(ctx context.Context) (*time.Time, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Select("created_at").
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post.CreatedAt, nil
}

func (r *statsRepository) CountPostsByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *statsRepository) CountCommentsByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// CountLikesReceivedByUser counts likes across all of the user's posts.
func (r *statsRepository) CountLikesReceivedByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("likes").
		Joins("JOIN posts ON posts.id = likes.post_id AND posts.deleted_at IS NULL").
		Where("posts.user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// LastActivityByUser returns the timestamp of the user's most recent post or
// comment, nil when they have neither.
func (r *statsRepository) LastActivityByUser(ctx context.Context, userID uint) (*time.Time, error) {
	latest := func(model any) (*time.Time, error) {
		var row struct {
			CreatedAt time.Time
		}
		err := r.db.WithContext(ctx).
			Model(model).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Select("created_at").
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &row.CreatedAt, nil
	}

	lastPost, err := latest(&models.Post{})
	if err != nil {
		return nil, err
	}
	lastComment, err := latest(&models.Comment{})
	if err != nil {
		return nil, err
	}

	switch {
	case lastPost == nil:
		return lastComment, nil
	case lastComment == nil:
		return lastPost, nil
	case lastComment.After(*lastPost):
		return lastComment, nil
	default:
		return lastPost, nil
	}
}
