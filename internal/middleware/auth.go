package middleware

import (
	"net/http"
	"strings"
	"time"

	"expensetracker/internal/model"
	"expensetracker/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

// AuthConfig carries the signing secret and token validity window. It is
// passed in explicitly at construction; there is no package-global secret.
type AuthConfig struct {
	Secret   []byte
	TokenTTL time.Duration
}

// Authenticator resolves bearer tokens into identities and issues new ones.
// Role and department are claims embedded at issuance time; a role change on
// the user record takes effect only after re-authentication. Tokens are valid
// for a fixed TTL, with no refresh or revocation list.
type Authenticator struct {
	cfg AuthConfig
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Authenticator{cfg: cfg}
}

// IssueToken signs a token for the user with subject, role and department
// claims and the configured expiry.
func (a *Authenticator) IssueToken(user *model.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        user.ID.String(),
		"role":       user.Role,
		"department": user.Department,
		"name":       user.Name,
		"iat":        now.Unix(),
		"exp":        now.Add(a.cfg.TokenTTL).Unix(),
	})
	return token.SignedString(a.cfg.Secret)
}

// ParseToken validates signature and expiry and returns the embedded identity
func (a *Authenticator) ParseToken(tokenString string) (model.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.cfg.Secret, nil
	})
	if err != nil || !token.Valid {
		return model.Identity{}, jwt.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Identity{}, jwt.ErrTokenInvalidClaims
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	department, _ := claims["department"].(string)
	name, _ := claims["name"].(string)
	if sub == "" || role == "" {
		return model.Identity{}, jwt.ErrTokenInvalidClaims
	}

	return model.Identity{UserID: sub, Role: role, Department: department, Name: name}, nil
}

// RequireRole validates the bearer token and checks the embedded role against
// the allowed list. Missing token -> 401, bad/expired token -> 400, role not
// allowed -> 403.
func (a *Authenticator) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Access denied. No token provided."))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
			return
		}

		identity, err := a.ParseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid token."))
			return
		}

		roleAllowed := false
		for _, role := range allowedRoles {
			if identity.Role == role {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the identity resolved by RequireRole for this request
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	val, exists := c.Get(identityKey)
	if !exists {
		return model.Identity{}, false
	}
	identity, ok := val.(model.Identity)
	return identity, ok
}
