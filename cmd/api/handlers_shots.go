package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

var thumbnailExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

func (s *Server) getShots(c *gin.Context) {
	shots, err := s.shots.GetShots(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shots": shots})
}

type createShotRequest struct {
	ShotName    string `json:"shot_name"`
	Description string `json:"description"`
}

func (s *Server) createShot(c *gin.Context) {
	var req createShotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	shot, err := s.shots.CreateShot(c.Request.Context(), c.Param("project_id"), req.ShotName, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Shot created successfully",
		"shot_id": shot.ID.Hex(),
	})
}

func (s *Server) getShot(c *gin.Context) {
	detail, err := s.shots.GetShotDetail(c.Request.Context(), c.Param("shot_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shot": detail})
}

func (s *Server) uploadThumbnail(c *gin.Context) {
	shotID := c.Param("shot_id")
	if _, err := s.shots.GetShot(c.Request.Context(), shotID); err != nil {
		respondError(c, err)
		return
	}

	header, err := c.FormFile("thumbnail")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !thumbnailExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type, expected an image"})
		return
	}

	shotDir := filepath.Join(s.cfg.UploadDir, "shots", shotID)
	if err := os.MkdirAll(shotDir, 0o755); err != nil {
		respondError(c, err)
		return
	}
	path := filepath.Join(shotDir, "thumbnail"+ext)
	if err := c.SaveUploadedFile(header, path); err != nil {
		respondError(c, err)
		return
	}

	if err := s.shots.UpdateThumbnail(c.Request.Context(), shotID, path); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Thumbnail uploaded successfully"})
}

func (s *Server) getThumbnail(c *gin.Context) {
	shot, err := s.shots.GetShot(c.Request.Context(), c.Param("shot_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if shot.ThumbnailPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail not found"})
		return
	}
	if _, err := os.Stat(shot.ThumbnailPath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail not found"})
		return
	}
	c.File(shot.ThumbnailPath)
}

func (s *Server) deleteThumbnail(c *gin.Context) {
	shotID := c.Param("shot_id")
	shot, err := s.shots.GetShot(c.Request.Context(), shotID)
	if err != nil {
		respondError(c, err)
		return
	}

	if shot.ThumbnailPath != "" {
		if err := os.Remove(shot.ThumbnailPath); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("failed to remove thumbnail from disk")
		}
	}

	if err := s.shots.UpdateThumbnail(c.Request.Context(), shotID, ""); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Thumbnail deleted successfully"})
}

// respondUpdatedShot re-reads the shot and returns it with the message.
func (s *Server) respondUpdatedShot(c *gin.Context, shotID, message string) {
	shot, err := s.shots.GetShot(c.Request.Context(), shotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shot": shot, "message": message})
}

func (s *Server) updateResolution(c *gin.Context) {
	var req struct {
		Width  *int `json:"width"`
		Height *int `json:"height"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Width == nil || req.Height == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width and height are required"})
		return
	}

	shotID := c.Param("shot_id")
	if err := s.shots.UpdateResolution(c.Request.Context(), shotID, *req.Width, *req.Height); err != nil {
		respondError(c, err)
		return
	}
	s.respondUpdatedShot(c, shotID, "Resolution updated successfully")
}

func (s *Server) updateDescription(c *gin.Context) {
	var req struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	shotID := c.Param("shot_id")
	if err := s.shots.UpdateDescription(c.Request.Context(), shotID, req.Description); err != nil {
		respondError(c, err)
		return
	}
	s.respondUpdatedShot(c, shotID, "Description updated successfully")
}

func (s *Server) updateDuration(c *gin.Context) {
	var req struct {
		StartFrame  *int `json:"start_frame"`
		EndFrame    *int `json:"end_frame"`
		TotalFrames *int `json:"total_frames"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	shotID := c.Param("shot_id")
	if err := s.shots.UpdateDuration(c.Request.Context(), shotID, req.StartFrame, req.EndFrame, req.TotalFrames); err != nil {
		respondError(c, err)
		return
	}
	s.respondUpdatedShot(c, shotID, "Duration updated successfully")
}

type lockRequest struct {
	Locked *bool `json:"locked"`
}

func (r *lockRequest) value() bool {
	return r.Locked != nil && *r.Locked
}

func (s *Server) updateResolutionLock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	shotID := c.Param("shot_id")
	if err := s.shots.UpdateResolutionLock(c.Request.Context(), shotID, req.value()); err != nil {
		respondError(c, err)
		return
	}
	s.respondUpdatedShot(c, shotID, "Resolution lock updated successfully")
}

func (s *Server) updateDescriptionLock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	shotID := c.Param("shot_id")
	if err := s.shots.UpdateDescriptionLock(c.Request.Context(), shotID, req.value()); err != nil {
		respondError(c, err)
		return
	}
	s.respondUpdatedShot(c, shotID, "Description lock updated successfully")
}

func (s *Server) updateDurationLock(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	shotID := c.Param("shot_id")
	if err := s.shots.UpdateDurationLock(c.Request.Context(), shotID, req.value()); err != nil {
		respondError(c, err)
		return
	}
	s.respondUpdatedShot(c, shotID, "Duration lock updated successfully")
}

func (s *Server) updateShotWorkers(c *gin.Context) {
	var req struct {
		ShotWorkers []string `json:"shot_workers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	shotID := c.Param("shot_id")
	workers := req.ShotWorkers
	if workers == nil {
		workers = []string{}
	}

	if err := s.shots.UpdateShotWorkers(c.Request.Context(), shotID, workers); err != nil {
		respondError(c, err)
		return
	}
	if err := s.chat.SyncShotRoom(c.Request.Context(), shotID, workers); err != nil {
		// Recoverable: the next workers update repairs the room.
		log.WithError(err).WithField("shot_id", shotID).Warn("chat room participant sync failed")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Shot workers updated successfully"})
}

func (s *Server) updateWorkersAssignment(c *gin.Context) {
	var req struct {
		WorkersAssignment map[string]string `json:"workers_assignment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workers assignment must be a map"})
		return
	}

	shotID := c.Param("shot_id")
	if err := s.shots.UpdateWorkersAssignment(c.Request.Context(), shotID, req.WorkersAssignment); err != nil {
		respondError(c, err)
		return
	}
	s.respondUpdatedShot(c, shotID, "Workers assignment updated successfully")
}
