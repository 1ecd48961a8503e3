package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cs15tutor/tutor/internal/auth"
	"github.com/cs15tutor/tutor/internal/common"
	"github.com/cs15tutor/tutor/internal/session"
)

// VSCodeAuth issues a login URL for the editor extension, or describes a
// pending handshake when a session id is supplied.
func (h *Handler) VSCodeAuth(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		id, err := h.Sessions.Create(c.Request.Context())
		if err != nil {
			log.Printf("[httpapi] create login session: %v", err)
			common.Fail(c, http.StatusInternalServerError, "Failed to generate session")
			return
		}
		common.OK(c, gin.H{
			"session_id": id,
			"login_url":  fmt.Sprintf("%s/vscode-auth?session_id=%s", h.Cfg.PublicURL, id),
		})
		return
	}

	common.OK(c, gin.H{
		"message":      "VSCode authentication pending",
		"session_id":   sessionID,
		"instructions": "Please authenticate via the web interface",
	})
}

type vscodeCallbackRequest struct {
	SessionID string `json:"session_id"`
}

// VSCodeAuthCallback completes a pending login handshake. The browser hits
// this through the authenticated web app, so identity comes from the
// upstream header, never from the request body.
func (h *Handler) VSCodeAuthCallback(c *gin.Context) {
	var req vscodeCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		common.Fail(c, http.StatusBadRequest, "session_id required")
		return
	}

	creds := auth.Credentials{RemoteUser: c.GetHeader("X-Remote-User")}
	username, err := h.Upstream.Verify(c.Request.Context(), creds)
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	if !h.Roster.Allowed(username) {
		common.Fail(c, http.StatusForbidden, "Access denied. You must be enrolled in CS 15.")
		return
	}

	token, err := h.Issuer.Issue(username)
	if err != nil {
		log.Printf("[httpapi] issue token for %s: %v", username, err)
		common.Fail(c, http.StatusInternalServerError, "Authentication error")
		return
	}

	switch err := h.Sessions.Complete(c.Request.Context(), req.SessionID, token, username); {
	case err == nil:
		common.OK(c, gin.H{"token": token, "utln": username})
	case errors.Is(err, session.ErrNotFound):
		common.Fail(c, http.StatusUnauthorized, "Authentication failed")
	case errors.Is(err, session.ErrAlreadyTerminal):
		common.Fail(c, http.StatusConflict, "Session already completed")
	default:
		log.Printf("[httpapi] complete login session: %v", err)
		common.Fail(c, http.StatusInternalServerError, "Authentication error")
	}
}

// VSCodeAuthStatus is the editor extension's polling endpoint.
func (h *Handler) VSCodeAuthStatus(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		common.Fail(c, http.StatusBadRequest, "Missing session_id")
		return
	}

	sess, err := h.Sessions.Get(c.Request.Context(), sessionID)
	if errors.Is(err, session.ErrNotFound) {
		common.OK(c, gin.H{"status": "not_found"})
		return
	}
	if err != nil {
		log.Printf("[httpapi] login session status: %v", err)
		common.Fail(c, http.StatusInternalServerError, "Status check failed")
		return
	}

	out := gin.H{"status": string(sess.Status)}
	if sess.Status == session.StatusCompleted {
		out["token"] = sess.Token
		out["utln"] = sess.Username
	}
	common.OK(c, out)
}

type directAuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VSCodeDirectAuth is the development-only credential login. The route is
// not even registered unless dev mode is enabled.
func (h *Handler) VSCodeDirectAuth(c *gin.Context) {
	if h.Dev == nil {
		common.Fail(c, http.StatusNotFound, "Not available")
		return
	}

	var req directAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "JSON data required")
		return
	}
	if req.Username == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	username, err := h.Dev.Verify(c.Request.Context(), auth.Credentials{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil || !h.Roster.Allowed(username) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Invalid credentials or user not authorized for CS 15",
		})
		return
	}

	token, err := h.Issuer.Issue(username)
	if err != nil {
		log.Printf("[httpapi] issue token for %s: %v", username, err)
		common.Fail(c, http.StatusInternalServerError, "Authentication error")
		return
	}

	common.OK(c, gin.H{
		"success":  true,
		"token":    token,
		"username": username,
		"message":  "Authentication successful",
	})
}
