package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/config"
	"github.com/SAP-F-2025/examination-service/internal/models"
	"github.com/SAP-F-2025/examination-service/internal/utils"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// IdentityResolver maps an identity provider subject to a local user
type IdentityResolver interface {
	ResolveExternal(ctx context.Context, externalID, name, email string, role models.UserRole) (*models.User, error)
}

// tokenParser verifies a bearer token; *casdoorsdk.Client satisfies it
type tokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// AuthMiddleware identifies the caller and stores an authz.Actor on the request context
type AuthMiddleware struct {
	mode   string
	parser tokenParser
	users  IdentityResolver
	logger utils.Logger
}

// NewAuthMiddleware builds the middleware for the configured mode
func NewAuthMiddleware(authCfg config.AuthConfig, cfg config.CasdoorConfig, users IdentityResolver, logger utils.Logger) *AuthMiddleware {
	m := &AuthMiddleware{
		mode:   authCfg.Mode,
		users:  users,
		logger: logger,
	}
	if m.mode == config.AuthModeCasdoor {
		m.parser = casdoorsdk.NewClient(
			cfg.Endpoint,
			cfg.ClientID,
			cfg.ClientSecret,
			cfg.Cert,
			cfg.Organization,
			cfg.Application,
		)
	}
	return m
}

// Authenticate returns the gin middleware for the configured mode
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	if m.mode == config.AuthModeHeader {
		return m.headerAuth
	}
	return m.casdoorAuth
}

func (m *AuthMiddleware) casdoorAuth(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		abortUnauthorized(c, "authorization header missing")
		return
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
		abortUnauthorized(c, "invalid authorization header format")
		return
	}

	claims, err := m.parser.ParseJwtToken(tokenParts[1])
	if err != nil {
		abortUnauthorized(c, fmt.Sprintf("invalid token: %v", err))
		return
	}
	if claims.Id == "" {
		abortUnauthorized(c, "invalid user ID in token")
		return
	}

	name := claims.User.DisplayName
	if name == "" {
		name = claims.User.Name
	}
	user, err := m.users.ResolveExternal(c.Request.Context(), claims.Id, name, claims.User.Email, mapCasdoorRole(claims.User.Type))
	if err != nil {
		utils.FromContext(c.Request.Context(), m.logger).Error("Failed to resolve user", "external_id", claims.Id, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Failed to resolve user",
		})
		return
	}
	if user.Status == models.UserInactive {
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Message: "User account is inactive",
		})
		return
	}

	setActor(c, authz.Actor{UserID: user.ID, Role: user.Role})
	c.Next()
}

// headerAuth trusts identity headers set by a gateway in front of the service
func (m *AuthMiddleware) headerAuth(c *gin.Context) {
	rawID := c.GetHeader(HeaderUserID)
	if rawID == "" {
		abortUnauthorized(c, HeaderUserID+" header missing")
		return
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		abortUnauthorized(c, "invalid "+HeaderUserID+" header")
		return
	}

	role := models.UserRole(strings.ToLower(c.GetHeader(HeaderUserRole)))
	if role == "" {
		role = models.RoleCandidate
	}
	if !role.IsValid() {
		abortUnauthorized(c, "invalid "+HeaderUserRole+" header")
		return
	}

	setActor(c, authz.Actor{UserID: uint(id), Role: role})
	c.Next()
}

// RequireRoleMiddleware checks if user has required role; admins always pass
func RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := authz.ActorFromContext(c.Request.Context())
		if !ok {
			abortUnauthorized(c, "user not found in context")
			return
		}
		if actor.IsAdmin() {
			c.Next()
			return
		}

		for _, role := range requiredRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
		})
	}
}

func setActor(c *gin.Context, actor authz.Actor) {
	c.Set("user_id", actor.UserID)
	c.Set("user_role", actor.Role)
	c.Request = c.Request.WithContext(authz.WithActor(c.Request.Context(), actor))
}

func abortUnauthorized(c *gin.Context, details string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Message: "User not authenticated",
		Details: details,
	})
}

// mapCasdoorRole maps the Casdoor user type to a local role for first sign-in
func mapCasdoorRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "examiner", "teacher", "instructor":
		return models.RoleExaminer
	default:
		return models.RoleCandidate
	}
}
