package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lacuina/content-service/pkg/middleware"
)

// API groups the route handlers of the service.
type API struct {
	Config   *ConfigHandler
	Backups  *BackupHandler
	Inbox    *InboxHandler
	Profile  *ProfileHandler
	Auth     *AuthHandler
	Verifier middleware.Verifier
	// SubmitLimits run in front of the public form endpoints.
	SubmitLimits []gin.HandlerFunc
}

// Register mounts public routes under /api, admin routes under /api/admin
// (Bearer ID token required) and auth routes under /auth.
func (a *API) Register(r *gin.Engine) {
	api := r.Group("/api")
	a.Config.RegisterPublic(api)
	a.Inbox.RegisterPublic(api, a.SubmitLimits...)

	admin := api.Group("/admin", middleware.AuthMiddleware(a.Verifier))
	a.Config.RegisterAdmin(admin)
	a.Backups.Register(admin)
	a.Inbox.RegisterAdmin(admin)
	a.Profile.Register(admin)

	if a.Auth != nil {
		a.Auth.Register(r.Group("/"))
	}
}
