package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment represents a comment on a post. Comments form a tree per post:
// a comment with a nil ParentID is a root, and replies reference their
// parent through ParentID. A reply always belongs to the same post as its
// parent.
type Comment struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Content  string   `gorm:"type:text;not null" json:"content"`
	UserID   uint     `gorm:"not null;index" json:"user_id"`
	PostID   uint     `gorm:"not null;index" json:"post_id"`
	ParentID *uint    `gorm:"index" json:"parent_id,omitempty"`
	User     User     `gorm:"foreignKey:UserID" json:"user"`
	Post     Post     `gorm:"foreignKey:PostID" json:"post,omitempty"`
	Parent   *Comment `gorm:"foreignKey:ParentID" json:"-"`
	// RepliesCount is not persisted; computed at query time
	RepliesCount int64          `gorm:"->" json:"replies_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsRoot reports whether the comment is attached directly to its post.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}
