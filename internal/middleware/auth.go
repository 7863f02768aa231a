package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SubjectKey is the gin context key holding the authenticated subject.
const SubjectKey = "auth_subject"

// Claims are the bearer-token claims accepted by the API.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// JWTConfig configures bearer-token verification.
type JWTConfig struct {
	Secret []byte
	Issuer string
}

// JWTAuth verifies HS256 bearer tokens. With an empty secret every request
// passes through unauthenticated.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	if len(cfg.Secret) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(*jwt.Token) (interface{}, error) { return cfg.Secret, nil }

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			unauthorized(c, "invalid authorization format")
			return
		}

		claims := &Claims{}
		token, err := parser.ParseWithClaims(parts[1], claims, keyFunc)
		if err != nil || !token.Valid {
			unauthorized(c, "invalid token")
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="pregnancy-risk"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":           "UNAUTHORIZED",
		"message":        msg,
		"correlation_id": c.GetString(CorrelationIDKey),
	})
}
