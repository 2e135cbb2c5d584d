package models

import "time"

// User is a registered account. The password column stores the value supplied
// at signup verbatim; existing databases rely on this layout.
type User struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	Username string `gorm:"unique;not null" json:"username"`
	Password string `gorm:"not null" json:"-"` // Never serialized in responses
}

// Post is a blog entry owned by the user who created it.
type Post struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"userId"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	InsertedAt time.Time `gorm:"column:inserted_at;autoCreateTime" json:"insertedAt"`
	User       User      `gorm:"foreignKey:UserID" json:"-"` // FK constraint only
}

// Comment belongs to a post and to the user who wrote it.
type Comment struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	PostID     uint      `gorm:"not null;index" json:"postId"`
	UserID     uint      `gorm:"not null;index" json:"userId"`
	Body       string    `json:"body"`
	InsertedAt time.Time `gorm:"column:inserted_at;autoCreateTime" json:"insertedAt"`
	Post       Post      `gorm:"foreignKey:PostID" json:"-"`
	User       User      `gorm:"foreignKey:UserID" json:"-"`
}
