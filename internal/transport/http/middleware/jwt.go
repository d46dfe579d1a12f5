package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"careercompass/internal/pkg/jwtutil"
	"careercompass/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
)

var (
	errMissingAuth = errors.New("missing authorization header")
	errAuthScheme  = errors.New("invalid authorization scheme")
)

// AuthJWT admits requests carrying a valid bearer token and stores the owning
// user id on the context; every embedding route is scoped by it.
func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			reject(c, err.Error())
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil || claims.UserID == 0 {
			log.Printf("request %s: rejected token: %v", c.GetString(ContextRequestIDKey), err)
			reject(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

// bearerToken extracts the credentials of a Bearer authorization header. The
// scheme name is matched case-insensitively.
func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingAuth
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errAuthScheme
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errAuthScheme
	}
	return token, nil
}

func reject(c *gin.Context, msg string) {
	response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, msg)
	c.Abort()
}
