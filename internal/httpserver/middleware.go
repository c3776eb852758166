package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"learnstore/internal/domain"
)

type ctxKey string

const (
	siteCtxKey ctxKey = "site"
	userCtxKey ctxKey = "user"
)

// Identity headers set by the authenticating gateway.
const (
	userHeader  = "X-Authenticated-User"
	emailHeader = "X-Authenticated-Email"
	rolesHeader = "X-Authenticated-Roles"
)

const staffRole = "staff"

func siteMiddleware(repo siteRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.Param("siteKey"))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody("site key required"))
			return
		}
		site, err := repo.GetByKey(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, errorBody("site not found"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("site lookup failed"))
			return
		}
		ctx := context.WithValue(c.Request.Context(), siteCtxKey, *site)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := strings.TrimSpace(c.GetHeader(userHeader))
		if username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("authentication required"))
			return
		}
		user := domain.User{Username: username, Email: strings.TrimSpace(c.GetHeader(emailHeader))}
		ctx := context.WithValue(c.Request.Context(), userCtxKey, user)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// staffMiddleware admits users the gateway tagged with the staff role. It
// runs after userMiddleware.
func staffMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, role := range strings.Split(c.GetHeader(rolesHeader), ",") {
			if strings.EqualFold(strings.TrimSpace(role), staffRole) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, errorBody("staff only"))
	}
}

func siteFrom(c *gin.Context) domain.Site {
	site, _ := c.Request.Context().Value(siteCtxKey).(domain.Site)
	return site
}

func userFrom(c *gin.Context) domain.User {
	user, _ := c.Request.Context().Value(userCtxKey).(domain.User)
	return user
}
