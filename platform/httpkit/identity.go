package httpkit

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ContextPrincipalKey is the gin context key for the verified caller identity.
	ContextPrincipalKey = "principalID"

	errMissingToken = "missing token"
	errInvalidToken = "invalid token"
)

// IdentityVerifier resolves an opaque bearer token to a principal identifier.
// The admin surface does not care how the token was issued.
type IdentityVerifier interface {
	Verify(token string) (string, error)
}

// AdminRequired returns middleware that verifies the bearer token against the
// given verifier and stores the resulting principal on the request context.
func AdminRequired(verifier IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, errMissingToken)
			return
		}

		principalID, err := verifier.Verify(rawToken)
		if err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		c.Set(ContextPrincipalKey, principalID)
		c.Next()
	}
}

// Principal returns the verified caller identity set by AdminRequired.
func Principal(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextPrincipalKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func extractBearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(401, ErrorResponse{Error: message})
}
