package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ageniuscoder/caseline/backend/internal/models"
	"github.com/ageniuscoder/caseline/backend/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var ErrAuthentication = errors.New("authentication failed")

type ctxKey string //these two lines  ensures safe storage/retrieval in context.Context.
const CtxIdentity ctxKey = "identity"

// IdentityLookup resolves a token subject to a current identity.
type IdentityLookup interface {
	GetUser(ctx context.Context, id string) (*models.Identity, error)
}

type Authenticator struct {
	Secret string
	Users  IdentityLookup
}

// Authenticate verifies a bearer credential and loads the identity behind it.
func (a Authenticator) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrAuthentication)
	}
	claims, err := ParseToken(a.Secret, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrAuthentication)
		}
		return nil, fmt.Errorf("%w: invalid token", ErrAuthentication)
	}
	ident, err := a.Users.GetUser(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: user not found", ErrAuthentication)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return ident, nil
}

// BearerToken reads the credential from the Authorization header, falling back
// to the token query parameter for socket upgrades.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (a Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		ident, err := a.Authenticate(c.Request.Context(), strings.TrimPrefix(h, "Bearer "))
		if errors.Is(err, ErrAuthentication) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(string(CtxIdentity), *ident)
		c.Next()
	}
}

func MustIdentity(c *gin.Context) models.Identity {
	if v, ok := c.Get(string(CtxIdentity)); ok {
		if id, ok := v.(models.Identity); ok {
			return id
		}
	}
	return models.Identity{}
}
