package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/johwaworks/QEPipeline/internal/data"
)

func (s *Server) getProjects(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		username = s.currentUsername(c)
	}
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	// Admin sees everything; regular users only projects they work on.
	if s.isAdminName(username) {
		username = ""
	}

	projects, err := s.projects.ListProjects(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

type createProjectRequest struct {
	Name             string   `json:"name"`
	Owner            string   `json:"owner"`
	Director         string   `json:"director"`
	Deadline         string   `json:"deadline"`
	ProductionStatus string   `json:"production_status"`
	VFXSupervisors   []string `json:"vfx_supervisors"`
	Members          []string `json:"members"`
	Description      string   `json:"description"`
}

func (s *Server) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}
	if req.Owner == "" {
		req.Owner = s.currentUsername(c)
	}

	project, err := s.projects.CreateProject(c.Request.Context(), req.Name, req.Owner, req.Director, req.Deadline, req.ProductionStatus, req.Description, req.VFXSupervisors, req.Members)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":    "Project created successfully",
		"project_id": project.ID.Hex(),
	})
}

func (s *Server) getProject(c *gin.Context) {
	detail, err := s.projects.GetProjectDetail(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": detail})
}

type updateProjectRequest struct {
	Name             *string  `json:"name"`
	Director         *string  `json:"director"`
	Deadline         *string  `json:"deadline"`
	ProductionStatus *string  `json:"production_status"`
	VFXSupervisors   []string `json:"vfx_supervisors"`
	Members          []string `json:"members"`
	Workers          []string `json:"workers"`
	Description      *string  `json:"description"`
	Username         string   `json:"username"`
}

func (s *Server) updateProject(c *gin.Context) {
	projectID := c.Param("project_id")

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	project, err := s.projects.GetProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	// Only the owner or the admin may touch the workers list.
	if req.Workers != nil {
		requester := req.Username
		if requester == "" {
			requester = s.currentUsername(c)
		}
		if requester == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is required to update workers"})
			return
		}
		if !s.isAdminName(requester) && requester != project.Owner {
			c.JSON(http.StatusForbidden, gin.H{"error": "only project owner can update workers"})
			return
		}
	}

	upd := data.ProjectUpdate{
		Name:             req.Name,
		Director:         req.Director,
		Deadline:         req.Deadline,
		ProductionStatus: req.ProductionStatus,
		VFXSupervisors:   req.VFXSupervisors,
		Members:          req.Members,
		Workers:          req.Workers,
		Description:      req.Description,
	}
	if err := s.projects.UpdateProject(c.Request.Context(), projectID, upd); err != nil {
		respondError(c, err)
		return
	}

	if req.Workers != nil {
		if err := s.chat.SyncProjectRoom(c.Request.Context(), projectID, req.Workers); err != nil {
			// Recoverable: the next workers update repairs the room.
			log.WithError(err).WithField("project_id", projectID).Warn("chat room participant sync failed")
		}
	}

	updated, err := s.projects.GetProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project": updated,
		"message": "Project updated successfully",
	})
}

type updateWorkersRequest struct {
	Workers  []string `json:"workers"`
	Username string   `json:"username"`
}

func (s *Server) updateProjectWorkers(c *gin.Context) {
	projectID := c.Param("project_id")

	var req updateWorkersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	project, err := s.projects.GetProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	requester := req.Username
	if requester == "" {
		requester = s.currentUsername(c)
	}
	if requester == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}
	if !s.isAdminName(requester) && requester != project.Owner {
		c.JSON(http.StatusForbidden, gin.H{"error": "only project owner can update workers"})
		return
	}

	workers := req.Workers
	if workers == nil {
		workers = []string{}
	}
	if err := s.projects.UpdateProject(c.Request.Context(), projectID, data.ProjectUpdate{Workers: workers}); err != nil {
		respondError(c, err)
		return
	}
	if err := s.chat.SyncProjectRoom(c.Request.Context(), projectID, workers); err != nil {
		log.WithError(err).WithField("project_id", projectID).Warn("chat room participant sync failed")
	}

	updated, err := s.projects.GetProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project": updated,
		"message": "Workers updated successfully",
	})
}

type requestDeletionRequest struct {
	Username    string `json:"username"`
	ProjectName string `json:"project_name"`
}

func (s *Server) requestProjectDeletion(c *gin.Context) {
	projectID := c.Param("project_id")

	var req requestDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}
	if req.Username == "" {
		req.Username = s.currentUsername(c)
	}
	if req.Username == "" || req.ProjectName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and project name are required"})
		return
	}

	project, err := s.projects.GetProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !s.isAdminName(req.Username) && req.Username != project.Owner {
		c.JSON(http.StatusForbidden, gin.H{"error": "only project owner can request deletion"})
		return
	}
	// The client confirms the project name to guard against slips.
	if project.Name != req.ProjectName {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project name does not match"})
		return
	}

	if _, err := s.deletions.RequestDeletion(c.Request.Context(), projectID, req.Username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Deletion request submitted. Awaiting admin approval.",
	})
}
