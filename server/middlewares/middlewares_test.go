package middlewares

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func newTestRouter(middleware gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware)
	router.GET("/whoami", func(c *gin.Context) {
		id := SessionUserId(c)
		if id == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, strconv.FormatUint(*id, 10))
	})
	return router
}

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(secret, 42, time.Hour)
	require.Nil(t, err)

	id, err := ParseToken(secret, token)
	require.Nil(t, err)
	assert.Equal(t, uint64(42), id)

	_, err = ParseToken([]byte("other-secret"), token)
	assert.NotNil(t, err)

	expired, err := IssueToken(secret, 42, -time.Minute)
	require.Nil(t, err)
	_, err = ParseToken(secret, expired)
	assert.NotNil(t, err)
}

func TestSessionMiddleware(t *testing.T) {
	router := newTestRouter(Session(secret))
	token, err := IssueToken(secret, 7, time.Hour)
	require.Nil(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil))
	assert.Equal(t, "7", w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	router.ServeHTTP(w, req)
	assert.Equal(t, "7", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami?token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestByPassSession(t *testing.T) {
	router := newTestRouter(ByPassSession())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(ByPassUserIdHeader, "3")
	router.ServeHTTP(w, req)
	assert.Equal(t, "3", w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(ByPassUserIdHeader, "not-a-number")
	router.ServeHTTP(w, req)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestRequestId(t *testing.T) {
	router := newTestRouter(RequestId())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Len(t, w.Header().Get(RequestIdHeader), 36)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(RequestIdHeader, "upstream-id")
	router.ServeHTTP(w, req)
	assert.Equal(t, "upstream-id", w.Header().Get(RequestIdHeader))
}
