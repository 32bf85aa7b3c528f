package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sabanago/ride-sharing/pkg/common"
	"github.com/sabanago/ride-sharing/pkg/logger"
	"github.com/sabanago/ride-sharing/pkg/models"
	"github.com/sabanago/ride-sharing/pkg/session"
)

// Claims represents JWT claims. Subject carries the user id; Role is the
// active role at issuance time and only gates the admin surface.
type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Auth validates bearer tokens: signature, expiry and revocation. On success
// it stores user_id, user_email, user_role, the raw token and its expiry in
// the gin context for handlers and the logout flow.
func Auth(jwtSecret string, store session.RevocationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.ErrorResponseWithCode(c, http.StatusUnauthorized, common.CodeUnauthorized, "authorization required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			common.ErrorResponseWithCode(c, http.StatusUnauthorized, common.CodeUnauthorized, "invalid authorization header format")
			c.Abort()
			return
		}
		tokenString := parts[1]

		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			common.ErrorResponseWithCode(c, http.StatusUnauthorized, common.CodeUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok {
			common.ErrorResponseWithCode(c, http.StatusUnauthorized, common.CodeUnauthorized, "invalid token claims")
			c.Abort()
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			common.ErrorResponseWithCode(c, http.StatusUnauthorized, common.CodeUnauthorized, "invalid token claims")
			c.Abort()
			return
		}

		if store != nil {
			revoked, err := store.IsRevoked(c.Request.Context(), tokenString)
			if err == nil && revoked {
				common.ErrorResponseWithCode(c, http.StatusUnauthorized, "TOKEN_REVOKED", "token has been revoked")
				c.Abort()
				return
			}
			// A store error fails open: the token still carries a valid
			// signature and expiry.
		}

		c.Set("user_id", userID)
		c.Set("user_email", claims.Email)
		c.Set("user_role", claims.Role)
		c.Set("access_token", tokenString)
		if claims.ExpiresAt != nil {
			c.Set("token_expires_at", claims.ExpiresAt.Time)
		}

		ctx := logger.ContextWithUserID(c.Request.Context(), userID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole checks that the token's role claim is one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user_role")
		if !exists {
			common.ErrorResponseWithCode(c, http.StatusUnauthorized, common.CodeUnauthorized, "user role not found")
			c.Abort()
			return
		}

		role, _ := value.(models.Role)
		for _, required := range roles {
			if role == required {
				c.Next()
				return
			}
		}

		common.ErrorResponseWithCode(c, http.StatusForbidden, common.CodeForbidden, "insufficient permissions")
		c.Abort()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, common.ErrUnauthorized
	}
	return userID.(uuid.UUID), nil
}

// GetUserEmail extracts the authenticated email from context.
func GetUserEmail(c *gin.Context) (string, error) {
	email, exists := c.Get("user_email")
	if !exists {
		return "", common.ErrUnauthorized
	}
	return email.(string), nil
}

// GetAccessToken returns the raw bearer token and its expiry, as stored by
// Auth. The logout handler feeds both into the revocation store.
func GetAccessToken(c *gin.Context) (string, time.Time, error) {
	token, exists := c.Get("access_token")
	if !exists {
		return "", time.Time{}, common.ErrUnauthorized
	}

	expiresAt := time.Time{}
	if value, ok := c.Get("token_expires_at"); ok {
		if t, ok := value.(time.Time); ok {
			expiresAt = t
		}
	}
	return token.(string), expiresAt, nil
}
