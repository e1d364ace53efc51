package feed

import (
	"context"

	"github.com/Luismorlan/picfeed/model"
	"github.com/Luismorlan/picfeed/utils"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	// PageSize bounds how many posts the visibility walk looks at.
	PageSize = 20
	// FetchWindow is how many rows callers should load per page, more than PageSize so that
	// posts of banned authors don't empty the page.
	FetchWindow = 25
	// CommentWindow caps the comments attached to a whole page, not to each post.
	CommentWindow = 3
)

var ErrReferentialAnomaly = errors.New("referential anomaly")

// HydrationStore is the part of the entity store the assembler reads from.
type HydrationStore interface {
	FetchCommentsForPosts(ctx context.Context, postIds []uint64, limit *int) ([]*model.Comment, error)
	FetchCommentCounts(ctx context.Context, postIds []uint64) (map[uint64]int, error)
	FetchUsersByIds(ctx context.Context, ids []uint64) ([]*model.User, error)
}

// Assembler turns a raw page of posts into feed items with a constant number of queries:
// comments, comment counts and users, whatever the page size.
type Assembler struct {
	store HydrationStore
}

func NewAssembler(store HydrationStore) *Assembler {
	return &Assembler{store: store}
}

// Assemble hydrates posts, which must be ordered newest first. With allComments false only
// the CommentWindow newest comments of the whole page are attached; to get a post's complete
// thread pass that post alone with allComments true.
//
// Posts of banned authors are skipped, and the walk stops after PageSize posts have been
// looked at, whether kept or skipped. The result can therefore be shorter than PageSize even
// when more visible posts follow in the input.
func (a *Assembler) Assemble(ctx context.Context, posts []*model.Post, allComments bool) ([]*model.FeedItem, error) {
	if len(posts) == 0 {
		return []*model.FeedItem{}, nil
	}

	postIds := make([]uint64, 0, len(posts))
	for _, p := range posts {
		postIds = append(postIds, p.Id)
	}
	postIds = utils.UniqueUint64s(postIds)

	var (
		comments []*model.Comment
		counts   map[uint64]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var limit *int
		if !allComments {
			l := CommentWindow
			limit = &l
		}
		var err error
		comments, err = a.store.FetchCommentsForPosts(gctx, postIds, limit)
		return errors.Wrap(err, "fail to fetch comments")
	})
	g.Go(func() error {
		var err error
		counts, err = a.store.FetchCommentCounts(gctx, postIds)
		return errors.Wrap(err, "fail to fetch comment counts")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	users, err := a.fetchAuthors(ctx, posts, comments)
	if err != nil {
		return nil, err
	}

	// newest first, reversed per post below
	commentsByPost := map[uint64][]*model.CommentItem{}
	for _, c := range comments {
		author, ok := users[c.UserId]
		if !ok {
			return nil, errors.Wrapf(ErrReferentialAnomaly, "comment %d has unknown author %d", c.Id, c.UserId)
		}
		commentsByPost[c.PostId] = append(commentsByPost[c.PostId], &model.CommentItem{Comment: c, User: author})
	}
	for _, items := range commentsByPost {
		reverse(items)
	}

	hydrated := make([]*model.FeedItem, 0, len(posts))
	for _, p := range posts {
		author, ok := users[p.UserId]
		if !ok {
			return nil, errors.Wrapf(ErrReferentialAnomaly, "post %d has unknown author %d", p.Id, p.UserId)
		}
		postComments := commentsByPost[p.Id]
		if postComments == nil {
			postComments = []*model.CommentItem{}
		}
		hydrated = append(hydrated, &model.FeedItem{
			Post:         p,
			User:         author,
			CommentCount: counts[p.Id],
			Comments:     postComments,
		})
	}

	return filterVisible(hydrated), nil
}

// filterVisible skips items of banned authors and stops after PageSize positions.
func filterVisible(items []*model.FeedItem) []*model.FeedItem {
	visible := []*model.FeedItem{}
	for idx, item := range items {
		if idx >= PageSize {
			break
		}
		if item.User.Deleted {
			continue
		}
		visible = append(visible, item)
	}
	return visible
}

// fetchAuthors loads post and comment authors in one query, indexed by id.
func (a *Assembler) fetchAuthors(ctx context.Context, posts []*model.Post, comments []*model.Comment) (map[uint64]*model.User, error) {
	ids := make([]uint64, 0, len(posts)+len(comments))
	for _, p := range posts {
		ids = append(ids, p.UserId)
	}
	for _, c := range comments {
		ids = append(ids, c.UserId)
	}

	rows, err := a.store.FetchUsersByIds(ctx, utils.UniqueUint64s(ids))
	if err != nil {
		return nil, errors.Wrap(err, "fail to fetch authors")
	}
	users := make(map[uint64]*model.User, len(rows))
	for _, u := range rows {
		users[u.Id] = u
	}
	return users, nil
}

func reverse(items []*model.CommentItem) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
