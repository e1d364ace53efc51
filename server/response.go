package server

import "github.com/Luismorlan/picfeed/model"

type CommentResponse struct {
	*model.Comment
	User *model.PublicUser `json:"user"`
}

type FeedItemResponse struct {
	Post         *model.Post        `json:"post"`
	User         *model.PublicUser  `json:"user"`
	CommentCount int                `json:"comment_count"`
	Comments     []*CommentResponse `json:"comments"`
}

func newFeedItemResponses(items []*model.FeedItem) []*FeedItemResponse {
	res := make([]*FeedItemResponse, 0, len(items))
	for _, item := range items {
		comments := make([]*CommentResponse, 0, len(item.Comments))
		for _, c := range item.Comments {
			comments = append(comments, &CommentResponse{Comment: c.Comment, User: c.User.Public()})
		}
		res = append(res, &FeedItemResponse{
			Post:         item.Post,
			User:         item.User.Public(),
			CommentCount: item.CommentCount,
			Comments:     comments,
		})
	}
	return res
}
