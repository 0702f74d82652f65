package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware пускает по статическому токену или по JWT, подписанному HMAC-секретом
func AuthMiddleware(staticTokens []string, jwtSecret string) gin.HandlerFunc {
	tokens := make(map[string]struct{}, len(staticTokens))
	for _, t := range staticTokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens[t] = struct{}{}
		}
	}
	secret := []byte(strings.TrimSpace(jwtSecret))

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(5*time.Second),
	)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		if _, ok := tokens[tokenStr]; ok {
			c.Set(subjectKey, "static")
			c.Next()
			return
		}

		if len(secret) > 0 {
			token, err := parser.Parse(tokenStr, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err == nil && token.Valid {
				sub, _ := token.Claims.GetSubject()
				c.Set(subjectKey, sub)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

const subjectKey = "auth_subject"
