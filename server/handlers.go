package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Luismorlan/picfeed/feed"
	"github.com/Luismorlan/picfeed/model"
	"github.com/Luismorlan/picfeed/server/middlewares"
	"github.com/Luismorlan/picfeed/session"
	"github.com/Luismorlan/picfeed/store"
	"github.com/Luismorlan/picfeed/utils"
	. "github.com/Luismorlan/picfeed/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	notifyLimit = 100
)

var allowedMimes = []string{"image/jpeg", "image/png", "image/gif"}

// Server wires the request handlers to the feed core. It holds no per-request state.
type Server struct {
	Store     store.EntityStore
	Assembler *feed.Assembler
	Users     *session.UserCache
}

func NewServer(s store.EntityStore, users *session.UserCache) *Server {
	return &Server{
		Store:     s,
		Assembler: feed.NewAssembler(s),
		Users:     users,
	}
}

// RegisterRoutes mounts all handlers, session middleware must already be in the chain.
func (s *Server) RegisterRoutes(router gin.IRouter) {
	router.GET("/", s.GetIndex)
	router.POST("/", s.PostIndex)
	router.GET("/posts/:id", s.GetPost)
	router.GET("/users/:id", s.GetUserPosts)
	router.POST("/comment", s.PostComment)
	router.GET("/notify", s.GetNotify)
	router.GET("/mypage", s.GetMyPage)
	router.GET("/admin/banned", s.GetBanned)
	router.POST("/admin/banned", s.PostBanned)
}

func abortWithError(c *gin.Context, status int, code int, msg string) {
	c.JSON(status, gin.H{
		"code": code,
		"msg":  msg,
	})
	c.Abort()
}

func abortWithInternalError(c *gin.Context, err error, msg string) {
	Log.WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"request_id": c.GetString(middlewares.RequestIdKey),
	}).WithError(err).Error(msg)
	abortWithError(c, http.StatusInternalServerError, utils.ErrorInternal, msg)
}

// currentUser resolves the session user through the cache, nil for anonymous visitors.
func (s *Server) currentUser(c *gin.Context) (*model.User, bool) {
	user, err := s.Users.ResolveCurrentUser(c.Request.Context(), middlewares.SessionUserId(c))
	if err != nil {
		abortWithInternalError(c, err, "fail to resolve current user")
		return nil, false
	}
	return user, true
}

// requireUser aborts unless a user that isn't banned is signed in.
func (s *Server) requireUser(c *gin.Context) (*model.User, bool) {
	user, ok := s.currentUser(c)
	if !ok {
		return nil, false
	}
	if user == nil || user.Deleted {
		abortWithError(c, http.StatusUnauthorized, utils.ErrorLoginRequired, "login required")
		return nil, false
	}
	return user, true
}

func (s *Server) requireAdmin(c *gin.Context) (*model.User, bool) {
	user, ok := s.requireUser(c)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin() {
		abortWithError(c, http.StatusForbidden, utils.ErrorPermission, "admin only")
		return nil, false
	}
	return user, true
}

func parseIdParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, http.StatusNotFound, utils.ErrorNotFound, "not found")
		return 0, false
	}
	return id, true
}

func (s *Server) assemble(c *gin.Context, posts []*model.Post, allComments bool) ([]*FeedItemResponse, bool) {
	items, err := s.Assembler.Assemble(c.Request.Context(), posts, allComments)
	if err != nil {
		abortWithInternalError(c, err, "fail to assemble feed")
		return nil, false
	}
	return newFeedItemResponses(items), true
}

// GetIndex serves the home timeline. max_created_at (RFC3339) pages to older posts.
func (s *Server) GetIndex(c *gin.Context) {
	me, ok := s.currentUser(c)
	if !ok {
		return
	}

	var before *time.Time
	if raw := c.Query("max_created_at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, utils.ErrorBadRequest, "invalid max_created_at")
			return
		}
		before = &t
	}

	posts, err := s.Store.FetchPostsPage(c.Request.Context(), before, feed.FetchWindow)
	if err != nil {
		abortWithInternalError(c, err, "fail to fetch posts")
		return
	}
	items, ok := s.assemble(c, posts, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"me": me.Public(), "posts": items})
}

func (s *Server) GetPost(c *gin.Context) {
	id, ok := parseIdParam(c)
	if !ok {
		return
	}
	me, ok := s.currentUser(c)
	if !ok {
		return
	}

	post, err := s.Store.FetchPostById(c.Request.Context(), id)
	if err != nil {
		abortWithInternalError(c, err, "fail to fetch post")
		return
	}
	if post == nil {
		abortWithError(c, http.StatusNotFound, utils.ErrorNotFound, "post not found")
		return
	}
	items, ok := s.assemble(c, []*model.Post{post}, true)
	if !ok {
		return
	}
	// the author is banned
	if len(items) == 0 {
		abortWithError(c, http.StatusNotFound, utils.ErrorNotFound, "post not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"me": me.Public(), "post": items[0]})
}

// GetUserPosts serves one author's timeline, banned authors don't have one.
func (s *Server) GetUserPosts(c *gin.Context) {
	id, ok := parseIdParam(c)
	if !ok {
		return
	}
	me, ok := s.currentUser(c)
	if !ok {
		return
	}

	user, err := s.Store.FetchUserById(c.Request.Context(), id)
	if err != nil {
		abortWithInternalError(c, err, "fail to fetch user")
		return
	}
	if user == nil || user.Deleted {
		abortWithError(c, http.StatusNotFound, utils.ErrorNotFound, "user not found")
		return
	}

	posts, err := s.Store.FetchPostsByAuthor(c.Request.Context(), user.Id, feed.FetchWindow)
	if err != nil {
		abortWithInternalError(c, err, "fail to fetch posts")
		return
	}
	items, ok := s.assemble(c, posts, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"me": me.Public(), "user": user.Public(), "posts": items})
}

func (s *Server) GetMyPage(c *gin.Context) {
	me, ok := s.requireUser(c)
	if !ok {
		return
	}
	posts, err := s.Store.FetchPostsByAuthor(c.Request.Context(), me.Id, feed.FetchWindow)
	if err != nil {
		abortWithInternalError(c, err, "fail to fetch posts")
		return
	}
	items, ok := s.assemble(c, posts, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"me": me.Public(), "posts": items})
}

type newPostInput struct {
	Body string `json:"body" binding:"required"`
	Mime string `json:"mime" binding:"required"`
}

// PostIndex records a post. Image bytes are handled by the upload pipeline, only the
// caption and the content type land here.
func (s *Server) PostIndex(c *gin.Context) {
	me, ok := s.requireUser(c)
	if !ok {
		return
	}
	var input newPostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, utils.ErrorBadRequest, err.Error())
		return
	}
	if !utils.ContainsString(allowedMimes, input.Mime) {
		abortWithError(c, http.StatusBadRequest, utils.ErrorBadRequest, "only jpeg, png and gif images can be posted")
		return
	}

	post := &model.Post{UserId: me.Id, Body: input.Body, Mime: input.Mime}
	if err := s.Store.CreatePost(c.Request.Context(), post); err != nil {
		abortWithInternalError(c, err, "fail to create post")
		return
	}
	Log.WithFields(logrus.Fields{"post_id": post.Id, "user_id": me.Id}).Info("post created")
	c.JSON(http.StatusCreated, post)
}

type newCommentInput struct {
	PostId  uint64 `json:"post_id" binding:"required"`
	Comment string `json:"comment" binding:"required"`
}

func (s *Server) PostComment(c *gin.Context) {
	me, ok := s.requireUser(c)
	if !ok {
		return
	}
	var input newCommentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, utils.ErrorBadRequest, err.Error())
		return
	}

	post, err := s.Store.FetchPostById(c.Request.Context(), input.PostId)
	if err != nil {
		abortWithInternalError(c, err, "fail to fetch post")
		return
	}
	if post == nil {
		abortWithError(c, http.StatusNotFound, utils.ErrorNotFound, "post not found")
		return
	}

	comment := &model.Comment{PostId: post.Id, UserId: me.Id, Comment: input.Comment}
	if err := s.Store.CreateComment(c.Request.Context(), comment); err != nil {
		abortWithInternalError(c, err, "fail to create comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// GetNotify lists the comments the current user wrote, newest first.
func (s *Server) GetNotify(c *gin.Context) {
	me, ok := s.requireUser(c)
	if !ok {
		return
	}
	comments, err := s.Store.FetchCommentsByAuthor(c.Request.Context(), me.Id, notifyLimit)
	if err != nil {
		abortWithInternalError(c, err, "fail to fetch comments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"me": me.Public(), "comments": comments})
}

func (s *Server) GetBanned(c *gin.Context) {
	me, ok := s.requireAdmin(c)
	if !ok {
		return
	}
	users, err := s.Store.FetchBannableUsers(c.Request.Context())
	if err != nil {
		abortWithInternalError(c, err, "fail to fetch users")
		return
	}
	public := make([]*model.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	c.JSON(http.StatusOK, gin.H{"me": me.Public(), "users": public})
}

type banInput struct {
	Uid []uint64 `json:"uid" binding:"required"`
}

// PostBanned soft-bans users and drops their cached session record, so a banned user's
// next request sees the flag instead of a stale copy.
func (s *Server) PostBanned(c *gin.Context) {
	me, ok := s.requireAdmin(c)
	if !ok {
		return
	}
	var input banInput
	if err := c.ShouldBindJSON(&input); err != nil {
		abortWithError(c, http.StatusBadRequest, utils.ErrorBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := s.Store.BanUsers(ctx, input.Uid); err != nil {
		abortWithInternalError(c, err, "fail to ban users")
		return
	}
	if err := s.Users.Invalidate(ctx, input.Uid...); err != nil {
		abortWithInternalError(c, err, "fail to invalidate banned users")
		return
	}
	Log.WithFields(logrus.Fields{"admin_id": me.Id, "banned": input.Uid}).Info("users banned")
	c.JSON(http.StatusOK, gin.H{"banned": input.Uid})
}
