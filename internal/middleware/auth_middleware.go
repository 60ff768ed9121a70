package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/school-api/internal/domain/entity"
	"github.com/yourusername/school-api/internal/service"
)

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	tokens *service.TokenService
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(tokens *service.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth проверяет bearer-токен и кладет пользователя в контекст запроса
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
			c.Abort()
			return
		}

		// Проверяем формат заголовка Bearer {token}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			c.Abort()
			return
		}

		user, token, err := m.tokens.Authenticate(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or revoked token", "error_type": "token_invalid"})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("access_token", token)

		c.Next()
	}
}

// RequireAbility пропускает только токены с указанной ability.
// Должен применяться ПОСЛЕ RequireAuth.
func (m *AuthMiddleware) RequireAbility(ability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := tokenFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
			c.Abort()
			return
		}

		if !token.Can(ability) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Token does not grant this action", "error_type": "ability_missing"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireVerifiedAdmin пропускает только администраторов с подтвержденным email.
// Проверка верификации идет первой: неверифицированный админ получает 403
// с кодом email_not_verified, а не ролевую ошибку.
func (m *AuthMiddleware) RequireVerifiedAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
			c.Abort()
			return
		}

		if !user.HasVerifiedEmail() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Email verification required", "error_type": "email_not_verified"})
			c.Abort()
			return
		}

		if !user.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin rights required", "error_type": "forbidden"})
			c.Abort()
			return
		}

		token, ok := tokenFromContext(c)
		if !ok || !token.Can(user.Role.TokenAbility()) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Token does not grant this action", "error_type": "ability_missing"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// SuperAdminOnly пропускает только супер-администраторов
func (m *AuthMiddleware) SuperAdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := userFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
			c.Abort()
			return
		}

		if !user.HasVerifiedEmail() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Email verification required", "error_type": "email_not_verified"})
			c.Abort()
			return
		}

		if !user.IsSuperAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Super admin rights required", "error_type": "forbidden"})
			c.Abort()
			return
		}

		c.Next()
	}
}

func userFromContext(c *gin.Context) (*entity.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := v.(*entity.User)
	return user, ok
}

func tokenFromContext(c *gin.Context) (*entity.AccessToken, bool) {
	v, exists := c.Get("access_token")
	if !exists {
		return nil, false
	}
	token, ok := v.(*entity.AccessToken)
	return token, ok
}
