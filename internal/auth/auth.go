package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// ContextPlayerID is the gin context key set by Middleware.
const ContextPlayerID = "player_id"

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns signed HS256 identity tokens into trusted player ids.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Issue signs a token for playerID. The seeder uses this to hand out dev
// identities. A zero ttl issues a token without exp; a negative ttl issues
// one that is already expired.
func (v *Verifier) Issue(playerID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"player_id": playerID,
		"iat":       time.Now().Unix(),
	}
	if ttl != 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify validates the token and returns its player_id claim. Numeric ids
// are accepted and rendered in base 10.
func (v *Verifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}

	switch id := claims["player_id"].(type) {
	case string:
		if id == "" {
			return "", ErrInvalidToken
		}
		return id, nil
	case float64:
		return strconv.FormatInt(int64(id), 10), nil
	default:
		return "", ErrInvalidToken
	}
}

// Middleware validates a bearer token and sets player_id in the gin context.
func Middleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		playerID, err := v.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ContextPlayerID, playerID)
		c.Next()
	}
}
