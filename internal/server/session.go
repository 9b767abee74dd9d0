package server

import (
	"net/http"

	"github.com/amoylab/skirmish/internal/common/errorx"
	"github.com/amoylab/skirmish/internal/session"

	"github.com/gin-gonic/gin"
)

type (
	createSessionRequest struct {
		UserID     string `json:"user_id"`
		ScenarioID string `json:"scenario_id"`
	}

	joinSessionRequest struct {
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
	}

	startGameRequest struct {
		SessionID string `json:"session_id"`
	}

	closeSessionRequest struct {
		Reason string `json:"reason"`
	}

	endGameRequest struct {
		SessionID string `json:"session_id"`
		WinnerID  string `json:"winner_id"`
		Reason    string `json:"reason"`
	}
)

// bindJSON decodes the request body and renders a 400 on failure
func (s *Server) bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.errs.HandleError(c, errorx.ErrMalformedBody.WithMessage(err.Error()))
		return false
	}
	return true
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if !s.bindJSON(c, &req) {
		return
	}
	id, err := s.deps.Sessions.CreateSession(c.Request.Context(), req.ScenarioID, req.UserID)
	if err != nil {
		s.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id})
}

func (s *Server) handleJoinSession(c *gin.Context) {
	var req joinSessionRequest
	if !s.bindJSON(c, &req) {
		return
	}
	if err := s.deps.Sessions.JoinSession(c.Request.Context(), req.SessionID, req.UserID); err != nil {
		s.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleStartGame(c *gin.Context) {
	var req startGameRequest
	if !s.bindJSON(c, &req) {
		return
	}
	n, err := s.deps.Sessions.StartGame(c.Request.Context(), req.SessionID)
	if err != nil {
		s.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notified": n})
}

func (s *Server) handleCloseSession(c *gin.Context) {
	var req closeSessionRequest
	// the body is optional
	if c.Request.ContentLength != 0 && !s.bindJSON(c, &req) {
		return
	}
	n, err := s.deps.Sessions.CloseSession(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		s.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notified": n})
}

func (s *Server) handleEndGame(c *gin.Context) {
	var req endGameRequest
	if !s.bindJSON(c, &req) {
		return
	}
	n, err := s.deps.Sessions.EndGame(c.Request.Context(), req.SessionID, req.WinnerID, req.Reason)
	if err != nil {
		s.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notified": n})
}

// handleDisconnect runs the disconnect cleanup for a connection id without
// touching its socket
func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.deps.Sessions.OnDisconnect(c.Request.Context(), c.Param("userId")); err != nil {
		s.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sum, err := s.deps.Sessions.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.errs.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) handleListSessions(c *gin.Context) {
	list, err := s.deps.Sessions.ListSessions(c.Request.Context())
	if err != nil {
		s.errs.HandleError(c, err)
		return
	}
	if list == nil {
		list = []session.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}
