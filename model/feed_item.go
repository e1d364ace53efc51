package model

// FeedItem is a post hydrated for display: its author, how many comments it has in total and
// the window of comments that was attached, oldest first.
type FeedItem struct {
	Post         *Post          `json:"post"`
	User         *User          `json:"-"`
	CommentCount int            `json:"comment_count"`
	Comments     []*CommentItem `json:"comments"`
}

type CommentItem struct {
	Comment *Comment `json:"comment"`
	User    *User    `json:"-"`
}
