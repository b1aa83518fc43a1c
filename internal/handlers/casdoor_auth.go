package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

type tokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// CasdoorAuthMiddleware provides authentication using Casdoor SDK
type CasdoorAuthMiddleware struct {
	parser   tokenParser
	userRepo repositories.UserRepository
	logger   utils.Logger
}

// NewCasdoorAuthMiddleware creates a new Casdoor authentication middleware
func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)
	return newCasdoorAuthMiddleware(client, userRepo, logger)
}

func newCasdoorAuthMiddleware(parser tokenParser, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		parser:   parser,
		userRepo: userRepo,
		logger:   logger,
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Error:     "unauthorized",
		Message:   message,
		Code:      "UNAUTHORIZED",
		Timestamp: nowUTC(),
		Path:      c.Request.URL.Path,
	})
}

// AuthMiddleware returns a Gin middleware function for Casdoor authentication
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "authorization header missing")
			return
		}

		// "Bearer <token>"
		tokenParts := strings.Fields(authHeader)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "bearer") {
			unauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := cam.parser.ParseJwtToken(tokenParts[1])
		if err != nil {
			unauthorized(c, fmt.Sprintf("invalid token: %v", err))
			return
		}

		user, err := cam.extractUserFromClaims(c.Request.Context(), claims)
		if err != nil {
			unauthorized(c, fmt.Sprintf("failed to extract user info: %v", err))
			return
		}

		setUser(c, user)
		c.Next()
	}
}

func setUser(c *gin.Context, user *models.User) {
	c.Set("user_id", user.ID)
	c.Set("user", user)
	c.Set("user_role", user.Role)
	c.Set("user_email", user.Email)
}

// RequireRoleMiddleware checks if user has required role. Admins always pass.
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return RequireRole(requiredRoles...)
}

// RequireRole is the role gate used behind any middleware that sets user_role
func RequireRole(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRoleFromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error:     "forbidden",
				Message:   err.Error(),
				Code:      "FORBIDDEN",
				Timestamp: nowUTC(),
				Path:      c.Request.URL.Path,
			})
			return
		}

		for _, requiredRole := range requiredRoles {
			if role == requiredRole || role == models.RoleAdmin {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Error:     "forbidden",
			Message:   fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
			Code:      "FORBIDDEN",
			Timestamp: nowUTC(),
			Path:      c.Request.URL.Path,
		})
	}
}

// extractUserFromClaims prefers the directory record and falls back to the token claims
func (cam *CasdoorAuthMiddleware) extractUserFromClaims(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	if claims == nil || claims.Id == "" {
		return nil, fmt.Errorf("invalid user ID in token")
	}

	if cam.userRepo != nil {
		user, err := cam.userRepo.GetByID(ctx, claims.Id)
		if err == nil && user != nil {
			return user, nil
		}
		if err != nil && !repositories.IsNotFoundError(err) {
			cam.logger.Warn("User lookup failed, using token claims", "user_id", claims.Id, "error", err)
		}
	}

	user := casdoor.ConvertUser(&claims.User)
	if claims.User.Type != "" && user.Role == models.RoleStudent {
		user.Role = casdoor.MapRole(claims.User.Type)
	}
	return user, nil
}

// GetUserFromContext extracts user from Gin context
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	user, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}

	userModel, ok := user.(*models.User)
	if !ok {
		return nil, fmt.Errorf("invalid user type in context")
	}

	return userModel, nil
}

// GetUserIDFromContext extracts user ID from Gin context
func GetUserIDFromContext(c *gin.Context) (string, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", fmt.Errorf("user ID not found in context")
	}

	id, ok := userID.(string)
	if !ok {
		return "", fmt.Errorf("invalid user ID type in context")
	}

	return id, nil
}

// GetUserRoleFromContext extracts user role from Gin context
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	userRole, exists := c.Get("user_role")
	if !exists {
		return "", fmt.Errorf("user role not found in context")
	}

	role, ok := userRole.(models.UserRole)
	if !ok {
		return "", fmt.Errorf("invalid user role type in context")
	}

	return role, nil
}
