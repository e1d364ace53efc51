package model

import "time"

/*

Post is an uploaded image with its caption

Id: primary key, auto-increment, newer posts always get bigger ids
CreatedAt: time when entity is created
UserId: author, "belongs-to" relation to User
Body: caption in plain text
Mime: content type of the image, one of image/jpeg, image/png, image/gif. The image bytes
	themselves live outside of the database.

Posts are never updated or deleted, a post by a banned author is hidden at read time.

*/

type Post struct {
	Id        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UserId    uint64    `gorm:"index;not null" json:"user_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Mime      string    `gorm:"not null" json:"mime"`
}
