package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cs15tutor/tutor/internal/auth"
	"github.com/cs15tutor/tutor/internal/chat"
	"github.com/cs15tutor/tutor/internal/config"
	"github.com/cs15tutor/tutor/internal/session"
)

type Handler struct {
	Cfg      config.Config
	ChatSvc  *chat.Service
	Issuer   *auth.Issuer
	Upstream auth.Verifier
	Dev      auth.Verifier // nil unless dev mode
	Roster   *auth.Roster
	Sessions session.Store
}

func NewHandler(cfg config.Config, chatSvc *chat.Service, issuer *auth.Issuer, upstream, dev auth.Verifier, roster *auth.Roster, sessions session.Store) *Handler {
	return &Handler{
		Cfg:      cfg,
		ChatSvc:  chatSvc,
		Issuer:   issuer,
		Upstream: upstream,
		Dev:      dev,
		Roster:   roster,
		Sessions: sessions,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
