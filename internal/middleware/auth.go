package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mattfrans/finnish-legal-assistant-sub000/internal/apperror"
	"github.com/mattfrans/finnish-legal-assistant-sub000/pkg/utils"
	"github.com/sirupsen/logrus"
)

const ClaimsKey = "claims"

// Claims carried by access tokens issued by the account service.
type Claims struct {
	Subscription string `json:"subscription,omitempty"`
	jwt.RegisteredClaims
}

// HasActiveSubscription reports whether the token grants paid access.
func (c *Claims) HasActiveSubscription() bool {
	return c.Subscription == "active" || c.Subscription == "trialing"
}

// Auth validates an HS256 bearer token and stores its claims on the context.
func Auth(secret []byte, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			utils.AbortWithError(c, apperror.New(apperror.KindAuthRequired, apperror.CodeAuthRequired, "missing bearer token"))
			return
		}

		claims, err := ParseToken(raw, secret)
		if err != nil {
			logger.WithError(err).WithField("request_id", c.GetString(RequestIDKey)).Debug("Rejected access token")
			utils.AbortWithError(c, apperror.New(apperror.KindAuthRequired, apperror.CodeAuthRequired, "invalid or expired token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireSubscription rejects callers whose token lacks an active plan.
// It must run after Auth.
func RequireSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, ok := c.Get(ClaimsKey)
		claims, isClaims := value.(*Claims)
		if !ok || !isClaims {
			utils.AbortWithError(c, apperror.New(apperror.KindAuthRequired, apperror.CodeAuthRequired, "authentication required"))
			return
		}
		if !claims.HasActiveSubscription() {
			utils.AbortWithError(c, apperror.New(apperror.KindSubscriptionRequired, apperror.CodeSubscriptionRequired, "an active subscription is required"))
			return
		}
		c.Next()
	}
}

func ParseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
