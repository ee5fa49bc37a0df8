package service

import (
	"context"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/repository"
)

// Stats is a snapshot of platform-wide numbers, all derived at read time.
type Stats struct {
	Users             int64                  `json:"users"`
	NewUsersThisMonth int64                  `json:"new_users_this_month"`
	Posts             int64                  `json:"posts"`
	Comments          int64                  `json:"comments"`
	Likes             int64                  `json:"likes"`
	ActiveUsers       int64                  `json:"active_users"`
	TopAuthors        []repository.TopAuthor `json:"top_authors"`
	LatestPostAt      *time.Time             `json:"latest_post_at"`
}

// UserStats is a per-user activity summary.
type UserStats struct {
	UserID         uint       `json:"user_id"`
	Posts          int64      `json:"posts"`
	Comments       int64      `json:"comments"`
	LikesReceived  int64      `json:"likes_received"`
	LastActivityAt *time.Time `json:"last_activity_at"`
}

type StatsService struct {
	statsRepo repository.StatsRepository
}

func NewStatsService(statsRepo repository.StatsRepository) *StatsService {
	return &StatsService{statsRepo: statsRepo}
}

// activeWindow is how far back a login still counts as active.
const activeWindow = 30 * 24 * time.Hour

const topAuthorsLimit = 5

// GetStats gathers the snapshot, served from cache for a short window since
// none of the numbers need to be second-accurate.
func (s *StatsService) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := cache.Aside(ctx, cache.StatsKey(), &stats, cache.StatsTTL, func() error {
		fresh, err := s.collect(ctx)
		if err != nil {
			return err
		}
		stats = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *StatsService) collect(ctx context.Context) (*Stats, error) {
	var stats Stats
	var err error

	if stats.Users, err = s.statsRepo.CountUsers(ctx); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if stats.NewUsersThisMonth, err = s.statsRepo.CountUsersSince(ctx, monthStart); err != nil {
		return nil, err
	}
	if stats.Posts, err = s.statsRepo.CountPosts(ctx); err != nil {
		return nil, err
	}
	if stats.Comments, err = s.statsRepo.CountComments(ctx); err != nil {
		return nil, err
	}
	if stats.Likes, err = s.statsRepo.CountLikes(ctx); err != nil {
		return nil, err
	}
	if stats.ActiveUsers, err = s.statsRepo.CountActiveUsers(ctx, time.Now().UTC().Add(-activeWindow)); err != nil {
		return nil, err
	}
	if stats.TopAuthors, err = s.statsRepo.TopAuthorsByLikes(ctx, topAuthorsLimit); err != nil {
		return nil, err
	}
	if stats.LatestPostAt, err = s.statsRepo.LatestPostAt(ctx); err != nil {
		return nil, err
	}

	return &stats, nil
}

// GetUserStats gathers one user's activity numbers. Existence of the user is
// the caller's concern.
func (s *StatsService) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	stats := &UserStats{UserID: userID}
	var err error

	if stats.Posts, err = s.statsRepo.CountPostsByUser(ctx, userID); err != nil {
		return nil, err
	}
	if stats.Comments, err = s.statsRepo.CountCommentsByUser(ctx, userID); err != nil {
		return nil, err
	}
	if stats.LikesReceived, err = s.statsRepo.CountLikesReceivedByUser(ctx, userID); err != nil {
		return nil, err
	}
	if stats.LastActivityAt, err = s.statsRepo.LastActivityByUser(ctx, userID); err != nil {
		return nil, err
	}

	return stats, nil
}
