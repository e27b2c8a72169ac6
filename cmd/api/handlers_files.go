package main

import (
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/johwaworks/QEPipeline/internal/data"
)

// saveUpload writes an uploaded blob under dir with a uuid prefix so
// concurrent uploads of the same filename never collide.
func (s *Server) saveUpload(c *gin.Context, header *multipart.FileHeader, dir string) (path string, size int64, fileType string, err error) {
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, "", err
	}

	name := uuid.NewString() + "_" + filepath.Base(header.Filename)
	path = filepath.Join(dir, name)
	if err = c.SaveUploadedFile(header, path); err != nil {
		return "", 0, "", err
	}

	fileType = header.Header.Get("Content-Type")
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	return path, header.Size, fileType, nil
}

func (s *Server) getProjectFiles(c *gin.Context) {
	projectID := c.Param("project_id")
	if _, err := s.projects.GetProject(c.Request.Context(), projectID); err != nil {
		respondError(c, err)
		return
	}

	files, err := s.files.GetProjectFiles(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files":   files,
		"message": "Files retrieved successfully",
	})
}

func (s *Server) uploadProjectFile(c *gin.Context) {
	projectID := c.Param("project_id")
	if _, err := s.projects.GetProject(c.Request.Context(), projectID); err != nil {
		respondError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}

	username := c.PostForm("username")
	if username == "" {
		username = s.currentUsername(c)
	}
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	dir := filepath.Join(s.cfg.UploadDir, "projects", projectID)
	path, size, fileType, err := s.saveUpload(c, header, dir)
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := s.files.CreateProjectFile(c.Request.Context(), projectID, username, filepath.Base(header.Filename), path, size, fileType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"file_id":   record.ID.Hex(),
		"filename":  record.Filename,
		"file_size": record.FileSize,
		"file_type": record.FileType,
		"message":   "File uploaded successfully",
	})
}

// serveRecord streams a file record's blob as an attachment.
func serveRecord(c *gin.Context, record *data.FileRecord) {
	if record.FilePath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found on disk"})
		return
	}
	if _, err := os.Stat(record.FilePath); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found on disk"})
		return
	}
	c.FileAttachment(record.FilePath, record.Filename)
}

func (s *Server) downloadProjectFile(c *gin.Context) {
	record, err := s.files.GetProjectFile(c.Request.Context(), c.Param("project_id"), c.Param("file_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	serveRecord(c, record)
}

// deleteRecord removes the blob from disk and then the record itself.
func (s *Server) deleteRecord(c *gin.Context, record *data.FileRecord) {
	if record.FilePath != "" {
		if err := os.Remove(record.FilePath); err != nil && !os.IsNotExist(err) {
			log.WithError(err).WithField("path", record.FilePath).Warn("failed to remove file from disk")
		}
	}

	if err := s.files.DeleteFile(c.Request.Context(), record.ID.Hex()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully"})
}

func (s *Server) deleteProjectFile(c *gin.Context) {
	record, err := s.files.GetProjectFile(c.Request.Context(), c.Param("project_id"), c.Param("file_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	s.deleteRecord(c, record)
}

func (s *Server) getShotFiles(c *gin.Context) {
	shotID := c.Param("shot_id")
	if _, err := s.shots.GetShot(c.Request.Context(), shotID); err != nil {
		respondError(c, err)
		return
	}

	files, err := s.files.GetShotFiles(c.Request.Context(), shotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files":   files,
		"message": "Files retrieved successfully",
	})
}

func (s *Server) uploadShotFile(c *gin.Context) {
	shotID := c.Param("shot_id")
	if _, err := s.shots.GetShot(c.Request.Context(), shotID); err != nil {
		respondError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}

	username := c.PostForm("username")
	if username == "" {
		username = s.currentUsername(c)
	}
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	dir := filepath.Join(s.cfg.UploadDir, "shots", shotID, "files")
	path, size, fileType, err := s.saveUpload(c, header, dir)
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := s.files.CreateShotFile(c.Request.Context(), shotID, username, filepath.Base(header.Filename), path, size, fileType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"file_id":   record.ID.Hex(),
		"filename":  record.Filename,
		"file_size": record.FileSize,
		"file_type": record.FileType,
		"message":   "File uploaded successfully",
	})
}

func (s *Server) downloadShotFile(c *gin.Context) {
	record, err := s.files.GetShotFile(c.Request.Context(), c.Param("shot_id"), c.Param("file_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	serveRecord(c, record)
}

func (s *Server) deleteShotFile(c *gin.Context) {
	record, err := s.files.GetShotFile(c.Request.Context(), c.Param("shot_id"), c.Param("file_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	s.deleteRecord(c, record)
}
