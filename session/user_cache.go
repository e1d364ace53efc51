package session

import (
	"context"
	"encoding/json"

	"github.com/Luismorlan/picfeed/model"
	"github.com/Luismorlan/picfeed/utils"
	. "github.com/Luismorlan/picfeed/utils/log"
	"github.com/pkg/errors"
)

const userKeyKind = "user"

// KeyValueCache is a shared string cache such as Redis. Implementations synchronize on their
// own; a Get followed by a Set is two independent operations.
type KeyValueCache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string) error
	Del(ctx context.Context, keys ...string) error
}

type UserFetcher interface {
	FetchUserById(ctx context.Context, id uint64) (*model.User, error)
}

// UserCache resolves the signed in user on every request. Entries are written once on a miss
// and trusted until the cache evicts them or Invalidate drops them.
type UserCache struct {
	cache KeyValueCache
	users UserFetcher
}

func NewUserCache(cache KeyValueCache, users UserFetcher) *UserCache {
	return &UserCache{cache: cache, users: users}
}

func UserKey(id uint64) string {
	return utils.EncodeCacheKey(userKeyKind, id)
}

// ResolveCurrentUser returns nil for anonymous visitors (nil id) and for ids without a row.
func (c *UserCache) ResolveCurrentUser(ctx context.Context, id *uint64) (*model.User, error) {
	if id == nil {
		return nil, nil
	}
	key := UserKey(*id)

	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to read %s from cache", key)
	}
	if found {
		return decodeUser(cached)
	}

	user, err := c.users.FetchUserById(ctx, *id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		Log.WithField("user_id", *id).Warn("session references a user that doesn't exist")
		return nil, nil
	}

	encoded, err := json.Marshal(user)
	if err != nil {
		return nil, errors.Wrapf(err, "fail to encode user %d", *id)
	}
	if err := c.cache.Set(ctx, key, string(encoded)); err != nil {
		return nil, errors.Wrapf(err, "fail to write %s to cache", key)
	}
	// hand out the cached form so a later hit returns the exact same value
	return decodeUser(string(encoded))
}

// Invalidate drops cached users, the next resolve reads them from the store again.
func (c *UserCache) Invalidate(ctx context.Context, ids ...uint64) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, UserKey(id))
	}
	return errors.Wrap(c.cache.Del(ctx, keys...), "fail to invalidate cached users")
}

func decodeUser(value string) (*model.User, error) {
	var user model.User
	if err := json.Unmarshal([]byte(value), &user); err != nil {
		return nil, errors.Wrap(err, "fail to decode cached user")
	}
	return &user, nil
}
