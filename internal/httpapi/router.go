package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cs15tutor/tutor/internal/common"
	"github.com/cs15tutor/tutor/internal/httpapi/handlers"
	"github.com/cs15tutor/tutor/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders,
		"Authorization", middleware.RemoteUserHeader)
	r.Use(cors.New(corsCfg))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", h.Health)

	// Login handshake for the editor extension.
	r.GET("/vscode-auth", h.VSCodeAuth)
	r.POST("/vscode-auth", h.VSCodeAuthCallback)
	r.GET("/vscode-auth-status", h.VSCodeAuthStatus)
	if h.Dev != nil {
		// Reachable only with the dev-mode flag set at process start.
		r.POST("/vscode-direct-auth", h.VSCodeDirectAuth)
	}

	// Chat endpoints resolve identity themselves so the streaming path can
	// report auth failures in-band.
	chatGroup := r.Group("/")
	chatGroup.Use(middleware.Identify(h.Issuer, h.Upstream))
	chatGroup.POST("/api", h.Chat)
	chatGroup.POST("/api/stream", h.ChatStream)

	return r
}
