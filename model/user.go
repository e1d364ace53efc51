package model

import (
	"time"

	"github.com/jinzhu/copier"
)

const (
	AuthorityNormal = 0
	AuthorityAdmin  = 1
)

/*

User is an account that uploads posts and writes comments

Id: primary key, auto-increment, monotonic in creation order
CreatedAt: time when entity is created
AccountName: unique login name, never changes after registration
Passhash: password digest, produced by the registration flow and never read by the feed
Authority: 0 for ordinary users, 1 for administrators
Deleted: soft-ban flag, stored as del_flg. A banned user's row stays in place and every read
	path filters on this flag instead.

*/

type User struct {
	Id          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	AccountName string    `gorm:"uniqueIndex;not null" json:"account_name"`
	Passhash    string    `gorm:"not null" json:"passhash"`
	Authority   int       `gorm:"not null;default:0" json:"authority"`
	Deleted     bool      `gorm:"column:del_flg;not null;default:false" json:"del_flg"`
}

// PublicUser is the subset of User that may leave the server.
type PublicUser struct {
	Id          uint64    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	AccountName string    `json:"account_name"`
	Authority   int       `json:"authority"`
	Deleted     bool      `json:"del_flg"`
}

func (u *User) IsAdmin() bool {
	return u.Authority == AuthorityAdmin
}

// Public drops password material. A nil user maps to nil.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	var p PublicUser
	// copier only fails on mismatched kinds, which can't happen between these two types.
	_ = copier.Copy(&p, u)
	return &p
}
