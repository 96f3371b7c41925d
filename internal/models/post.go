package models

import "time"

// CreatedAtFormat is the wire format for post timestamps. Fixed-width
// fractional seconds keep lexicographic order equal to chronological order,
// which the stores rely on for cursors.
const CreatedAtFormat = "2006-01-02T15:04:05.000Z"

// Now returns the current UTC time in CreatedAtFormat.
func Now() string {
	return time.Now().UTC().Format(CreatedAtFormat)
}

type Post struct {
	PostID     string   `gorm:"primaryKey;column:post_id" json:"postId" firestore:"postId"`
	UserID     string   `gorm:"index" json:"userId" firestore:"userId"`
	Nickname   string   `json:"nickname,omitempty" firestore:"nickname,omitempty"`
	Content    string   `json:"content" firestore:"content"`
	IsMarkdown bool     `json:"isMarkdown,omitempty" firestore:"isMarkdown"`
	ImageKeys  []string `gorm:"serializer:json" json:"imageKeys,omitempty" firestore:"imageKeys,omitempty"`
	ImageURLs  []string `gorm:"-" json:"imageUrls,omitempty" firestore:"-"`
	Tags       []string `gorm:"serializer:json" json:"tags,omitempty" firestore:"tags,omitempty"`
	CreatedAt  string   `gorm:"index:idx_posts_created" json:"createdAt" firestore:"createdAt"`
}

// HasTag reports whether the post carries the given tag.
func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
