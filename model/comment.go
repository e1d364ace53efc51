package model

import "time"

/*

Comment is a reply on a post

Id: primary key, auto-increment
CreatedAt: time when entity is created
PostId: post commented on, "belongs-to" relation to Post
UserId: author, "belongs-to" relation to User
Comment: body in plain text

*/

type Comment struct {
	Id        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	PostId    uint64    `gorm:"index;not null" json:"post_id"`
	UserId    uint64    `gorm:"index;not null" json:"user_id"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
}
