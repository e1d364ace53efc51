package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Luismorlan/picfeed/utils"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// SessionCookieName carries the session token, the "token" query parameter is accepted
	// as well for API clients.
	SessionCookieName = "picfeed_session"
	// SubKey is where the authenticated user id is stored in the gin context.
	SubKey = "sub"
	// ByPassUserIdHeader is trusted instead of a token when auth is bypassed in development.
	ByPassUserIdHeader = "X-User-Id"
	RequestIdHeader    = "X-Request-Id"
	RequestIdKey       = "request_id"

	issuer = "picfeed"
)

// IssueToken signs a session token for the user. Verifying credentials is up to the caller.
func IssueToken(secret []byte, userId uint64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatUint(userId, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies the token signature and expiry and returns the user id it was issued for.
func ParseToken(secret []byte, token string) (uint64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "invalid token subject")
	}
	return id, nil
}

func tokenFromRequest(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	token, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return token
}

// Session middleware looks for a session token in the "token" query parameter or the
// session cookie. Without a token the request goes on as anonymous. A token that fails
// verification (wrong signature or expired) aborts with 401. On success the user's id is
// stored under SubKey.
func Session(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			c.Next()
			return
		}

		id, err := ParseToken(secret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": utils.ErrorTokenAuthFail,
				"msg":  err.Error(),
			})
			c.Abort()
			return
		}

		c.Set(SubKey, id)
		c.Next()
	}
}

// ByPassSession trusts the X-User-Id header. Development only.
func ByPassSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader(ByPassUserIdHeader); header != "" {
			if id, err := strconv.ParseUint(header, 10, 64); err == nil {
				c.Set(SubKey, id)
			}
		}
		c.Next()
	}
}

// SessionUserId returns the authenticated user id, nil for anonymous requests.
func SessionUserId(c *gin.Context) *uint64 {
	v, ok := c.Get(SubKey)
	if !ok {
		return nil
	}
	id, ok := v.(uint64)
	if !ok {
		return nil
	}
	return &id
}

// RequestId tags every request with an id, reusing the one a proxy already set, and echoes
// it in the response so error reports can be matched with server logs.
func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIdHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(RequestIdKey, id)
		c.Header(RequestIdHeader, id)
		c.Next()
	}
}
