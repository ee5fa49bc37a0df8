// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log/slog"
	"math/rand"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

// Options controls how much demo data is generated.
type Options struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	// ReplyChance is the probability (0..1) that a comment is a reply to an
	// earlier comment on the same post instead of a new root.
	ReplyChance float64
	// MaxDepth bounds generated reply chains the same way the comment
	// service does, with roots at depth 0.
	MaxDepth   int
	LikeChance float64
	SkipBcrypt bool
	DryRun     bool
}

// DefaultOptions is a small but lively data set.
func DefaultOptions() Options {
	return Options{
		Users:           10,
		PostsPerUser:    3,
		CommentsPerPost: 5,
		ReplyChance:     0.4,
		MaxDepth:        3,
		LikeChance:      0.3,
		SkipBcrypt:      true,
	}
}

// Run populates the database with demo users, posts, threaded comments and
// likes. Likes go through Create one by one so the unique index keeps the
// data honest even here.
func Run(db *gorm.DB, opts Options) error {
	f := NewFactory(db, opts)

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		user, err := f.CreateUser()
		if err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		users = append(users, user)
	}

	var posts []*models.Post
	for _, user := range users {
		for i := 0; i < opts.PostsPerUser; i++ {
			post, err := f.CreatePost(user)
			if err != nil {
				return fmt.Errorf("seed post: %w", err)
			}
			posts = append(posts, post)
		}
	}

	for _, post := range posts {
		var thread []*models.Comment
		depths := map[uint]int{}
		for i := 0; i < opts.CommentsPerPost; i++ {
			author := users[rand.Intn(len(users))]

			// Replies only attach to comments that still have room below
			// the depth bound.
			var candidates []*models.Comment
			for _, c := range thread {
				if depths[c.ID] < opts.MaxDepth {
					candidates = append(candidates, c)
				}
			}

			var parent *models.Comment
			if len(candidates) > 0 && rand.Float64() < opts.ReplyChance {
				parent = candidates[rand.Intn(len(candidates))]
			}

			comment, err := f.CreateComment(author, post, parent)
			if err != nil {
				return fmt.Errorf("seed comment: %w", err)
			}
			if parent != nil {
				depths[comment.ID] = depths[parent.ID] + 1
			}
			thread = append(thread, comment)
		}

		for _, user := range users {
			if rand.Float64() < opts.LikeChance {
				if err := f.CreateLike(user, post); err != nil {
					return fmt.Errorf("seed like: %w", err)
				}
			}
		}
	}

	middleware.Logger.Info("Seed complete",
		slog.Int("users", len(users)),
		slog.Int("posts", len(posts)))
	return nil
}
