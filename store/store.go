package store

import (
	"context"
	"time"

	"github.com/Luismorlan/picfeed/model"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// authorColumns is what the feed needs to know about an author. Password material is never
// loaded on the batched path.
var authorColumns = []string{"id", "account_name", "authority", "del_flg", "created_at"}

// EntityStore is the relational storage behind the feed. All lookups by id return (nil, nil)
// when the row doesn't exist, errors are reserved for storage failures.
type EntityStore interface {
	FetchPostsPage(ctx context.Context, before *time.Time, limit int) ([]*model.Post, error)
	FetchPostsByAuthor(ctx context.Context, authorId uint64, limit int) ([]*model.Post, error)
	FetchPostById(ctx context.Context, id uint64) (*model.Post, error)
	FetchCommentsForPosts(ctx context.Context, postIds []uint64, limit *int) ([]*model.Comment, error)
	FetchCommentCounts(ctx context.Context, postIds []uint64) (map[uint64]int, error)
	FetchUsersByIds(ctx context.Context, ids []uint64) ([]*model.User, error)
	FetchUserById(ctx context.Context, id uint64) (*model.User, error)

	FetchCommentsByAuthor(ctx context.Context, authorId uint64, limit int) ([]*model.Comment, error)
	FetchBannableUsers(ctx context.Context) ([]*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	CreatePost(ctx context.Context, post *model.Post) error
	CreateComment(ctx context.Context, comment *model.Comment) error
	BanUsers(ctx context.Context, ids []uint64) error
}

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

// FetchPostsPage returns the newest posts created at or before `before`, or the newest
// posts overall when before is nil.
func (s *GormStore) FetchPostsPage(ctx context.Context, before *time.Time, limit int) ([]*model.Post, error) {
	posts := []*model.Post{}
	query := s.DB.WithContext(ctx).Model(&model.Post{})
	if before != nil {
		query = query.Where("created_at <= ?", *before)
	}
	if err := query.Order("id desc").Limit(limit).Find(&posts).Error; err != nil {
		return nil, errors.Wrap(err, "fail to fetch posts page")
	}
	return posts, nil
}

func (s *GormStore) FetchPostsByAuthor(ctx context.Context, authorId uint64, limit int) ([]*model.Post, error) {
	posts := []*model.Post{}
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", authorId).
		Order("id desc").
		Limit(limit).
		Find(&posts).Error; err != nil {
		return nil, errors.Wrapf(err, "fail to fetch posts of user %d", authorId)
	}
	return posts, nil
}

func (s *GormStore) FetchPostById(ctx context.Context, id uint64) (*model.Post, error) {
	var post model.Post
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fail to fetch post %d", id)
	}
	return &post, nil
}

// FetchCommentsForPosts returns comments of all given posts, newest first. limit, when set,
// caps the whole result and not each post's share of it.
func (s *GormStore) FetchCommentsForPosts(ctx context.Context, postIds []uint64, limit *int) ([]*model.Comment, error) {
	comments := []*model.Comment{}
	if len(postIds) == 0 {
		return comments, nil
	}
	query := s.DB.WithContext(ctx).Where("post_id IN ?", postIds).Order("id desc")
	if limit != nil {
		query = query.Limit(*limit)
	}
	if err := query.Find(&comments).Error; err != nil {
		return nil, errors.Wrap(err, "fail to fetch comments for posts")
	}
	return comments, nil
}

func (s *GormStore) FetchCommentCounts(ctx context.Context, postIds []uint64) (map[uint64]int, error) {
	counts := map[uint64]int{}
	if len(postIds) == 0 {
		return counts, nil
	}

	type commentCount struct {
		PostId uint64
		Count  int
	}
	var rows []commentCount
	if err := s.DB.WithContext(ctx).
		Model(&model.Comment{}).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", postIds).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "fail to count comments for posts")
	}
	for _, r := range rows {
		counts[r.PostId] = r.Count
	}
	return counts, nil
}

// FetchUsersByIds loads authors without password material, ordered by id.
func (s *GormStore) FetchUsersByIds(ctx context.Context, ids []uint64) ([]*model.User, error) {
	users := []*model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := s.DB.WithContext(ctx).
		Select(authorColumns).
		Where("id IN ?", ids).
		Order("id").
		Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "fail to fetch users")
	}
	return users, nil
}

// FetchUserById loads the full row, this is what the session cache keeps.
func (s *GormStore) FetchUserById(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fail to fetch user %d", id)
	}
	return &user, nil
}

// FetchCommentsByAuthor lists comments written by a user, newest first.
func (s *GormStore) FetchCommentsByAuthor(ctx context.Context, authorId uint64, limit int) ([]*model.Comment, error) {
	comments := []*model.Comment{}
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", authorId).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&comments).Error; err != nil {
		return nil, errors.Wrapf(err, "fail to fetch comments of user %d", authorId)
	}
	return comments, nil
}

// FetchBannableUsers lists ordinary users that are not banned yet, newest first.
func (s *GormStore) FetchBannableUsers(ctx context.Context) ([]*model.User, error) {
	users := []*model.User{}
	if err := s.DB.WithContext(ctx).
		Select(authorColumns).
		Where("authority = ? AND del_flg = ?", model.AuthorityNormal, false).
		Order("created_at desc").
		Order("id desc").
		Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "fail to fetch bannable users")
	}
	return users, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *model.User) error {
	return errors.Wrap(s.DB.WithContext(ctx).Create(user).Error, "fail to create user")
}

func (s *GormStore) CreatePost(ctx context.Context, post *model.Post) error {
	return errors.Wrap(s.DB.WithContext(ctx).Create(post).Error, "fail to create post")
}

func (s *GormStore) CreateComment(ctx context.Context, comment *model.Comment) error {
	return errors.Wrap(s.DB.WithContext(ctx).Create(comment).Error, "fail to create comment")
}

// BanUsers flips del_flg for every id. Posts and comments stay, they are hidden at read time.
func (s *GormStore) BanUsers(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	return errors.Wrap(
		s.DB.WithContext(ctx).
			Model(&model.User{}).
			Where("id IN ?", ids).
			Update("del_flg", true).Error,
		"fail to ban users")
}
