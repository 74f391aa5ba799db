package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/astrolink/consult-rtc/internal/api/http/converter"
	"github.com/astrolink/consult-rtc/internal/repository"
	"github.com/astrolink/consult-rtc/internal/service"
	"github.com/astrolink/consult-rtc/lib/logger/sl"
)

type SessionController struct {
	sessions service.SessionInteractor
	log      *slog.Logger
}

func NewSessionController(sessions service.SessionInteractor, log *slog.Logger) *SessionController {
	return &SessionController{sessions: sessions, log: log}
}

func (ctrl *SessionController) GetConsultation(c *gin.Context) {
	id, err := uuid.Parse(c.Param("consultationID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid consultation id"})
		return
	}

	consultation, err := ctrl.sessions.GetConsultation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrConsultationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "consultation not found"})
			return
		}
		ctrl.log.Error("failed to get consultation", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get consultation"})
		return
	}

	c.JSON(http.StatusOK, converter.ToConsultationResponse(consultation))
}

// ListMyConsultations returns the call history of the authenticated user,
// on either side of the call.
func (ctrl *SessionController) ListMyConsultations(c *gin.Context) {
	userID := c.GetString("user_id")

	list, err := ctrl.sessions.ListConsultations(c.Request.Context(), userID)
	if err != nil {
		ctrl.log.Error("failed to list consultations", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list consultations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"consultations": converter.ToConsultationResponses(list)})
}

func (ctrl *SessionController) GetLiveSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	session, err := ctrl.sessions.GetLiveSession(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrLiveSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "live session not found"})
			return
		}
		ctrl.log.Error("failed to get live session", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get live session"})
		return
	}

	c.JSON(http.StatusOK, converter.ToLiveSessionResponse(session))
}

func (ctrl *SessionController) ListActiveLiveSessions(c *gin.Context) {
	list, err := ctrl.sessions.ListActiveLiveSessions(c.Request.Context())
	if err != nil {
		ctrl.log.Error("failed to list live sessions", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list live sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": converter.ToLiveSessionResponses(list)})
}

func (ctrl *SessionController) ChatHistory(c *gin.Context) {
	room := c.Param("room")
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	messages, err := ctrl.sessions.ChatHistory(c.Request.Context(), room, limit)
	if err != nil {
		ctrl.log.Error("failed to load chat history", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": converter.ToChatMessageResponses(messages)})
}

func (ctrl *SessionController) LiveViewerCount(c *gin.Context) {
	room := c.Param("room")
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return
	}

	count, err := ctrl.sessions.LiveViewerCount(c.Request.Context(), room)
	if err != nil {
		ctrl.log.Error("failed to count viewers", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count viewers"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room, "viewer_count": count})
}
