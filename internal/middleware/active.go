package middleware

import (
	"net/http"

	"roadassist/internal/models"

	"github.com/gin-gonic/gin"
)

// UserLoader is the lookup ActiveAccount needs. *repository.UserRepository satisfies it.
type UserLoader interface {
	GetByID(id string) (*models.User, error)
}

// ActiveAccount rejects tokens whose user was deleted or banned after the
// token was issued. Use after AuthRequired.
func ActiveAccount(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "unauthorized"})
			return
		}
		u, err := users.GetByID(userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not found"})
			return
		}
		if u.IsBanned {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "your account is banned"})
			return
		}
		c.Set("user", u)
		c.Next()
	}
}

// CurrentUser returns the user loaded by ActiveAccount, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
