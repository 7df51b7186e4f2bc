package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/coursekit/coursekit/app/models"
	"github.com/coursekit/coursekit/internal/pkg/database"
	"github.com/coursekit/coursekit/internal/pkg/session"
	"github.com/coursekit/coursekit/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	// Get session with error handling
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		// On error: set as anonymous user
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			IsLoggedIn: false,
			IsAdmin:    false,
		})
		c.Locals(usercontext.KeyFromProtected, false)
		c.Locals(usercontext.KeyIsAdmin, false)
		return c.Next()
	}

	// Get user ID from session
	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		// Anonymous user - no session data
		c.Locals("USER_CONTEXT", usercontext.UserContext{
			IsLoggedIn: false,
			IsAdmin:    false,
		})
		c.Locals(usercontext.KeyFromProtected, false)
		c.Locals(usercontext.KeyIsAdmin, false)
		return c.Next()
	}

	// User is logged in - get additional data
	username := session.GetSessionValue(c, usercontext.KeyUsername)
	isAdmin := sess.Get(usercontext.KeyIsAdmin)

	// Determine role with session-first strategy
	role := session.GetSessionValue(c, "user_role")
	currentOrgID := uint(0)
	if v := session.GetSessionValue(c, "current_org_id"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			currentOrgID = uint(parsed)
		}
	}
	if role == "" {
		role = models.ROLE_USER
		if db := database.GetDB(); db != nil {
			var user models.User
			if err := db.First(&user, userID.(uint)).Error; err == nil && user.Role != "" {
				role = user.Role
			}
			if us, err := models.GetOrCreateUserSettings(db, userID.(uint)); err == nil && us != nil && us.DefaultOrganizationID != nil {
				currentOrgID = *us.DefaultOrganizationID
			}
		}
		// cache in session for subsequent requests
		_ = session.SetSessionValue(c, "user_role", role)
		if currentOrgID != 0 {
			_ = session.SetSessionValue(c, "current_org_id", strconv.FormatUint(uint64(currentOrgID), 10))
		}
	}

	// Set complete user context
	userCtx := usercontext.UserContext{
		UserID:       userID.(uint),
		Username:     username,
		IsLoggedIn:   true,
		IsAdmin:      isAdmin != nil && isAdmin.(bool),
		Role:         role,
		CurrentOrgID: currentOrgID,
	}
	c.Locals("USER_CONTEXT", userCtx)

	c.Locals(usercontext.KeyFromProtected, true)
	c.Locals(usercontext.KeyUsername, username)
	c.Locals(usercontext.KeyUserID, userID.(uint))
	c.Locals(usercontext.KeyIsAdmin, userCtx.IsAdmin)

	// Store username in user's individual session (multi-user safe)
	session.SetSessionValue(c, usercontext.KeyUsername, username)

	return c.Next()
}
