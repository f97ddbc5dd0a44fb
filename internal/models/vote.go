package models

import (
	"time"
)

// VoteKind is the recorded direction of a vote.
type VoteKind string

const (
	// VoteUp and VoteDown are the only two states a cast vote can hold.
	VoteUp   VoteKind = "upvote"
	VoteDown VoteKind = "downvote"
	// VoteNone is reported for users who never voted on a post. It is never
	// stored: there is no operation that returns a vote to the unvoted state.
	VoteNone VoteKind = "none"
)

// Valid reports whether k is a kind that can be cast.
func (k VoteKind) Valid() bool {
	return k == VoteUp || k == VoteDown
}

// Vote records a single user's current vote on a single post.
// The unique index on (post_id, user_id) is the schema-level backstop for the
// at-most-one-vote invariant; the vote repository enforces it in logic as well.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_post_user" json:"post_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_post_user" json:"user_id"`
	Kind      VoteKind  `gorm:"type:varchar(16);not null" json:"kind"`
	Post      Post      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
