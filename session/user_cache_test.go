package session

import (
	"context"
	"testing"
	"time"

	"github.com/Luismorlan/picfeed/model"
	"github.com/Luismorlan/picfeed/store"
	"github.com/Luismorlan/picfeed/utils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCache struct {
	*utils.RedisKeyValueStore
	gets, sets, dels int
	getErr           error
}

func newRecordingCache(t *testing.T) *recordingCache {
	s, _ := utils.CreateTempRedis(t)
	return &recordingCache{RedisKeyValueStore: s}
}

func (r *recordingCache) Get(ctx context.Context, key string) (string, bool, error) {
	r.gets++
	if r.getErr != nil {
		return "", false, r.getErr
	}
	return r.RedisKeyValueStore.Get(ctx, key)
}

func (r *recordingCache) Set(ctx context.Context, key string, value string) error {
	r.sets++
	return r.RedisKeyValueStore.Set(ctx, key, value)
}

func (r *recordingCache) Del(ctx context.Context, keys ...string) error {
	r.dels++
	return r.RedisKeyValueStore.Del(ctx, keys...)
}

type fakeUsers struct {
	users map[uint64]*model.User
	reads int
}

func (f *fakeUsers) FetchUserById(ctx context.Context, id uint64) (*model.User, error) {
	f.reads++
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[uint64]*model.User{
		7: {
			Id:          7,
			AccountName: "mary",
			Passhash:    "digest",
			CreatedAt:   time.Date(2021, 8, 8, 14, 32, 50, 123, time.UTC),
		},
	}}
}

func uid(id uint64) *uint64 {
	return &id
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, "user:7", UserKey(7))
}

func TestResolveAnonymousTouchesNothing(t *testing.T) {
	cache, users := newRecordingCache(t), newFakeUsers()
	user, err := NewUserCache(cache, users).ResolveCurrentUser(context.Background(), nil)
	assert.Nil(t, err)
	assert.Nil(t, user)
	assert.Equal(t, 0, cache.gets+cache.sets+cache.dels)
	assert.Equal(t, 0, users.reads)
}

func TestResolveSecondCallIsCacheHit(t *testing.T) {
	cache, users := newRecordingCache(t), newFakeUsers()
	c := NewUserCache(cache, users)
	ctx := context.Background()

	first, err := c.ResolveCurrentUser(ctx, uid(7))
	require.Nil(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, users.reads)
	assert.Equal(t, 1, cache.sets)

	second, err := c.ResolveCurrentUser(ctx, uid(7))
	require.Nil(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, users.reads)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 2, cache.gets)
	assert.Equal(t, "mary", second.AccountName)
	assert.Equal(t, "digest", second.Passhash)
}

func TestResolveTrustsCachedEntry(t *testing.T) {
	cache, users := newRecordingCache(t), newFakeUsers()
	c := NewUserCache(cache, users)
	ctx := context.Background()

	_, err := c.ResolveCurrentUser(ctx, uid(7))
	require.Nil(t, err)
	users.users[7].Deleted = true

	user, err := c.ResolveCurrentUser(ctx, uid(7))
	require.Nil(t, err)
	assert.False(t, user.Deleted)

	require.Nil(t, c.Invalidate(ctx, 7))
	user, err = c.ResolveCurrentUser(ctx, uid(7))
	require.Nil(t, err)
	assert.True(t, user.Deleted)
	assert.Equal(t, 2, users.reads)
}

func TestResolveMissingUser(t *testing.T) {
	cache, users := newRecordingCache(t), newFakeUsers()
	user, err := NewUserCache(cache, users).ResolveCurrentUser(context.Background(), uid(404))
	assert.Nil(t, err)
	assert.Nil(t, user)
	assert.Equal(t, 0, cache.sets)
}

func TestResolvePropagatesCacheErrors(t *testing.T) {
	cache, users := newRecordingCache(t), newFakeUsers()
	cache.getErr = errors.New("redis down")

	user, err := NewUserCache(cache, users).ResolveCurrentUser(context.Background(), uid(7))
	assert.Nil(t, user)
	assert.True(t, errors.Is(err, cache.getErr))
	assert.Equal(t, 0, users.reads)
}

func TestResolveWithGormStore(t *testing.T) {
	db, _ := utils.CreateTempDB(t)
	s := store.NewGormStore(db)
	ctx := context.Background()
	require.Nil(t, s.CreateUser(ctx, &model.User{AccountName: "mary", Passhash: "digest"}))

	cache, server := utils.CreateTempRedis(t)
	c := NewUserCache(cache, s)
	first, err := c.ResolveCurrentUser(ctx, uid(1))
	require.Nil(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "mary", first.AccountName)
	assert.True(t, server.Exists(UserKey(1)))
	assert.Zero(t, server.TTL(UserKey(1)))

	// the store row changes, redis keeps answering with the cached copy
	require.Nil(t, s.BanUsers(ctx, []uint64{1}))
	second, err := c.ResolveCurrentUser(ctx, uid(1))
	require.Nil(t, err)
	assert.Equal(t, first, second)
	assert.False(t, second.Deleted)

	require.Nil(t, c.Invalidate(ctx, 1))
	assert.False(t, server.Exists(UserKey(1)))
	third, err := c.ResolveCurrentUser(ctx, uid(1))
	require.Nil(t, err)
	assert.True(t, third.Deleted)
}

func TestResolveMissingUserLeavesRedisEmpty(t *testing.T) {
	cache, server := utils.CreateTempRedis(t)
	user, err := NewUserCache(cache, newFakeUsers()).ResolveCurrentUser(context.Background(), uid(404))
	assert.Nil(t, err)
	assert.Nil(t, user)
	assert.Empty(t, server.Keys())
}
