package models

// Post is the slice of the post record this service touches: its owner and
// the denormalized like counter. The rest of the post belongs to the post
// service that shares the database.
type Post struct {
	Model
	UserID    uint `json:"user_id" gorm:"not null;index"`
	LikeCount int  `json:"like_count" gorm:"not null;default:0"`
}
