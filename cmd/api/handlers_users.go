package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "QEPipeline API is running",
		"version": "1.0.0",
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) serverTime(c *gin.Context) {
	now := time.Now().UTC()
	c.JSON(http.StatusOK, gin.H{
		"server_time": now.Format(time.RFC3339Nano),
		"timestamp":   float64(now.UnixNano()) / 1e9,
		"timezone":    "UTC",
	})
}

type registerRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Birthdate string `json:"birthdate"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if s.isAdminName(req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot register admin user"})
		return
	}

	if err := s.users.Register(c.Request.Context(), req.Username, req.Password, req.Name, req.Role, req.Birthdate); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration submitted. Awaiting admin approval.",
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := s.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, expiresAt, err := s.jwtMgr.GenerateToken(user.ID, user.Username, user.IsAdmin || s.isAdminName(user.Username))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"username":   user.Username,
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) getUsers(c *gin.Context) {
	users, err := s.users.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) getUser(c *gin.Context) {
	user, err := s.users.GetUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (s *Server) getProfile(c *gin.Context) {
	username := s.currentUsername(c)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	user, err := s.users.GetUser(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": user})
}

func (s *Server) getActiveUsers(c *gin.Context) {
	minutes := 5
	if v := c.Query("minutes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minutes = n
		}
	}

	users, err := s.users.GetActiveUsers(c.Request.Context(), time.Duration(minutes)*time.Minute)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (s *Server) updateActivity(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	if err := s.users.UpdateActivity(c.Request.Context(), req.Username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Activity updated"})
}

func (s *Server) getPartners(c *gin.Context) {
	partners, err := s.users.GetPartners(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partners": partners})
}

func (s *Server) getPartnerRequests(c *gin.Context) {
	requests, err := s.users.GetPartnerRequests(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

func (s *Server) sendPartnerRequest(c *gin.Context) {
	var req struct {
		From string `json:"from" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sender username is required"})
		return
	}

	if err := s.users.SendPartnerRequest(c.Request.Context(), req.From, c.Param("username")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Partner request sent"})
}

func (s *Server) acceptPartnerRequest(c *gin.Context) {
	if err := s.users.AcceptPartnerRequest(c.Request.Context(), c.Param("username"), c.Param("from")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Partner request accepted"})
}

func (s *Server) rejectPartnerRequest(c *gin.Context) {
	if err := s.users.RejectPartnerRequest(c.Request.Context(), c.Param("username"), c.Param("from")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Partner request rejected"})
}

func (s *Server) removePartner(c *gin.Context) {
	if err := s.users.RemovePartner(c.Request.Context(), c.Param("username"), c.Param("partner")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Partner removed"})
}
