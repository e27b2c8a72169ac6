package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// checkAdmin validates admin credentials supplied with the request.
func (s *Server) checkAdmin(c *gin.Context, username, password string) bool {
	ok, err := s.users.IsAdmin(c.Request.Context(), username, password)
	if err != nil || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

func (s *Server) adminPending(c *gin.Context) {
	if !s.checkAdmin(c, c.Query("username"), c.Query("password")) {
		return
	}

	pending, err := s.users.GetPendingRegistrations(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

type adminApproveRequest struct {
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
	Username      string `json:"username"`
	Approve       *bool  `json:"approve"`
}

func (s *Server) adminApprove(c *gin.Context) {
	var req adminApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}
	if !s.checkAdmin(c, req.AdminUsername, req.AdminPassword) {
		return
	}
	if req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	approve := req.Approve == nil || *req.Approve
	if err := s.users.ApproveRegistration(c.Request.Context(), req.Username, approve); err != nil {
		respondError(c, err)
		return
	}

	status := "approved"
	if !approve {
		status = "rejected"
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("User %q %s", req.Username, status)})
}

func (s *Server) adminPendingDeletions(c *gin.Context) {
	if !s.checkAdmin(c, c.Query("username"), c.Query("password")) {
		return
	}

	deletions, err := s.deletions.GetPendingDeletions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletions": deletions})
}

type adminApproveDeletionRequest struct {
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
	ProjectID     string `json:"project_id"`
	Approve       *bool  `json:"approve"`
}

func (s *Server) adminApproveDeletion(c *gin.Context) {
	var req adminApproveDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}
	if !s.checkAdmin(c, req.AdminUsername, req.AdminPassword) {
		return
	}
	if req.ProjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project id is required"})
		return
	}

	approve := req.Approve == nil || *req.Approve
	if err := s.deletions.ApproveDeletion(c.Request.Context(), req.ProjectID, approve); err != nil {
		respondError(c, err)
		return
	}

	status := "approved and deleted"
	if !approve {
		status = "rejected"
	}
	c.JSON(http.StatusOK, gin.H{"message": "Project deletion " + status})
}
