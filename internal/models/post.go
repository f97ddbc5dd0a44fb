package models

import (
	"time"
)

// Post represents a forum post.
//
// Likes and Dislikes are persisted denormalized counters over the votes
// table. They are only ever written through the vote repository, which keeps
// them in the same transaction as the vote row they reflect.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	ImageURL    string    `json:"image_url"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	User        User      `gorm:"foreignKey:UserID" json:"user"`
	Likes       int       `gorm:"not null;default:0;check:likes >= 0" json:"likes"`
	Dislikes    int       `gorm:"not null;default:0;check:dislikes >= 0" json:"dislikes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Aggregate is the denormalized (likes, dislikes) pair for a post.
type Aggregate struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}
