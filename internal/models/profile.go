package models

// Profile is the per-user display-name record, separate from the identity
// provider's claims. One per user, upserted by the owner only.
type Profile struct {
	UserID    string `gorm:"primaryKey;column:user_id" json:"userId" firestore:"userId"`
	Nickname  string `json:"nickname" firestore:"nickname"`
	CreatedAt string `json:"createdAt,omitempty" firestore:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty" firestore:"updatedAt"`
}
