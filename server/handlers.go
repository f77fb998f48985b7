package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/souschef-ai/souschef/core"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required", "code": "bad_request"})
		return
	}

	ownerID, err := s.guard.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"owner_id": ownerID, "email": req.Email})
}

func (s *Server) handleStart(c *gin.Context) {
	var recipe core.Recipe
	if err := c.ShouldBindJSON(&recipe); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed recipe payload", "code": "invalid_recipe"})
		return
	}

	res, err := s.orch.StartSession(c.Request.Context(), principal(c), recipe)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.metrics.SessionStarted()
	c.JSON(http.StatusCreated, res)
}

func (s *Server) handleListSessions(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	sessions, err := s.orch.ListSessions(c.Request.Context(), principal(c), activeOnly)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleStatus(c *gin.Context) {
	status, err := s.orch.GetStatus(c.Request.Context(), principal(c), c.Param("sessionId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleMessage(c *gin.Context) {
	var msg core.ChatMessage
	if err := c.ShouldBindJSON(&msg); err != nil || msg.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and message are required", "code": "bad_request"})
		return
	}

	reply, err := s.orch.SendMessage(c.Request.Context(), principal(c), msg)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (s *Server) handleCompleteStep(c *gin.Context) {
	stepNumber, err := strconv.Atoi(c.Param("stepNumber"))
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: step number must be an integer", core.ErrInvalidStep))
		return
	}

	res, err := s.orch.CompleteStep(c.Request.Context(), principal(c), c.Param("sessionId"), stepNumber)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleHistory(c *gin.Context) {
	history, err := s.orch.GetHistory(c.Request.Context(), principal(c), c.Param("sessionId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) handleEnd(c *gin.Context) {
	summary, err := s.orch.EndSession(c.Request.Context(), principal(c), c.Param("sessionId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleJobProgress ingests a progress notification from a trusted internal
// collaborator. The path parameter is authoritative for the job id.
func (s *Server) handleJobProgress(c *gin.Context) {
	var ev core.JobProgressEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed progress event", "code": "bad_request"})
		return
	}
	ev.JobID = c.Param("jobId")

	s.relay.OnJobProgress(ev)
	s.metrics.JobEvent(ev.Status)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
