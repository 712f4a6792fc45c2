package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yashrajoria/storefront-service/common/auth"
	apperrors "github.com/yashrajoria/storefront-service/common/errors"
	"github.com/yashrajoria/storefront-service/common/logger"
	"github.com/yashrajoria/storefront-service/models"
	"github.com/yashrajoria/storefront-service/services"
)

const (
	ActorContextKey   = "actor"
	SessionContextKey = "cart_session"

	// UserHeader is set by the gateway after it has authenticated the caller.
	// It is taken at face value, so with header trust enabled the service
	// must only be reachable through the gateway, which strips any
	// client-supplied copy.
	UserHeader = "X-User-Name"
	// TokenCookie carries a signed access token when there is no gateway.
	TokenCookie = "access_token"
	// SessionCookie names the guest's server-side session.
	SessionCookie = "cart_session"
)

// Identity resolves who the caller is. With trustGateway set the gateway
// header wins; otherwise a valid access token cookie is used; otherwise the
// caller is a guest. A bad token is not an error: the caller simply shops as
// a guest. Deployments that expose the service without the gateway must turn
// trustGateway off.
func Identity(jwtSecret []byte, trustGateway bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var username string
		if trustGateway {
			username = c.GetHeader(UserHeader)
		}

		if username == "" {
			if token, err := c.Cookie(TokenCookie); err == nil && token != "" {
				claims, err := auth.ParseAndValidateToken(token, jwtSecret, auth.TokenTypeAccess)
				if err == nil {
					username, err = auth.Username(claims)
				}
				if err != nil {
					logger.Debug(c, "Ignoring access token", zap.Error(err))
					username = ""
				}
			}
		}

		c.Set(ActorContextKey, username)
		c.Next()
	}
}

// CartSession makes sure every caller carries a session cookie, issuing a
// fresh random id when the cookie is missing or malformed.
func CartSession(maxAge time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookie)
		if err != nil || uuid.Validate(sessionID) != nil {
			sessionID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sessionID, int(maxAge.Seconds()), "/", "", secure, true)
		}
		c.Set(SessionContextKey, sessionID)
		c.Next()
	}
}

// RequireUser rejects guests with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetActor(c).IsAuthenticated() {
			_ = c.Error(apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetActor(c *gin.Context) models.Actor {
	return models.Actor{Username: c.GetString(ActorContextKey)}
}

func GetSessionID(c *gin.Context) string {
	return c.GetString(SessionContextKey)
}

// NewCartRequest builds the per-request cart context from what Identity and
// CartSession stored on c.
func NewCartRequest(c *gin.Context) *services.CartRequest {
	return services.NewCartRequest(GetActor(c), GetSessionID(c))
}
