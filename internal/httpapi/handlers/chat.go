package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cs15tutor/tutor/internal/chat"
	"github.com/cs15tutor/tutor/internal/common"
	"github.com/cs15tutor/tutor/internal/httpapi/middleware"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// Chat handles one non-streaming turn and returns the terminal payload as a
// single JSON object.
func (h *Handler) Chat(c *gin.Context) {
	username, platform, ok := middleware.Identity(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, chat.AuthRequiredEvent().Error)
		return
	}
	if !h.Roster.Allowed(username) {
		common.Fail(c, http.StatusForbidden, chat.AccessDeniedEvent().Error)
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, "Message is required")
		return
	}

	ev := h.ChatSvc.Exchange(c.Request.Context(), chat.TurnRequest{
		Username:       username,
		Platform:       platform,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if ev.Status != chat.StatusComplete {
		common.Fail(c, http.StatusInternalServerError, ev.Error)
		return
	}
	common.OK(c, gin.H{
		"response":        ev.Response,
		"rag_context":     ev.RAGContext,
		"conversation_id": ev.ConversationID,
	})
}

// ChatStream handles one turn over SSE: newline-delimited `data: <json>`
// records, terminated by exactly one complete or error record.
func (h *Handler) ChatStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful behind nginx
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	writeEvent := func(ev chat.Event) {
		b, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[httpapi] marshal stream event: %v", err)
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		if canFlush {
			flusher.Flush()
		}
	}

	username, platform, ok := middleware.Identity(c)
	if !ok {
		writeEvent(chat.AuthRequiredEvent())
		return
	}
	if !h.Roster.Allowed(username) {
		writeEvent(chat.AccessDeniedEvent())
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeEvent(chat.Event{Status: chat.StatusError, Error: "Invalid JSON body"})
		return
	}

	events := h.ChatSvc.Stream(c.Request.Context(), chat.TurnRequest{
		Username:       username,
		Platform:       platform,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			writeEvent(ev)
			if ev.Terminal() {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}
