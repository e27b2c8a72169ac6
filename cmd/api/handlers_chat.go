package main

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func (s *Server) getProjectChatRoom(c *gin.Context) {
	room, err := s.chat.GetOrCreateProjectRoom(c.Request.Context(), c.Param("project_id"), s.currentUsername(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_room": room,
		"message":   "Chat room retrieved successfully",
	})
}

func (s *Server) getShotChatRoom(c *gin.Context) {
	room, err := s.chat.GetOrCreateShotRoom(c.Request.Context(), c.Param("shot_id"), s.currentUsername(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_room": room,
		"message":   "Chat room retrieved successfully",
	})
}

func (s *Server) getChatRoom(c *gin.Context) {
	room, err := s.chat.GetRoom(c.Request.Context(), c.Param("room_id"), s.currentUsername(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_room": room,
		"message":   "Chat room retrieved successfully",
	})
}

func (s *Server) getChatRoomMessages(c *gin.Context) {
	roomID := c.Param("room_id")

	var limit int64 = 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := s.chat.ListMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	// Reading the room counts as seeing its messages.
	if username := s.currentUsername(c); username != "" {
		if err := s.chat.MarkRead(c.Request.Context(), roomID, username); err != nil {
			log.WithError(err).WithField("room_id", roomID).Warn("failed to mark messages as read")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"message":  "Messages retrieved successfully",
	})
}

type postMessageRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
	FileID   string `json:"file_id"`
}

func (s *Server) createChatRoomMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	username := s.currentUsername(c)
	if username == "" {
		username = req.Username
	}
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "username required"})
		return
	}

	msg, err := s.chat.PostMessage(c.Request.Context(), c.Param("room_id"), username, req.Content, req.FileID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      msg,
		"message_text": "Message created successfully",
	})
}

func (s *Server) markChatRoomRead(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}
	_ = c.ShouldBindJSON(&req)

	username := s.currentUsername(c)
	if username == "" {
		username = req.Username
	}
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "username required"})
		return
	}

	if err := s.chat.MarkRead(c.Request.Context(), c.Param("room_id"), username); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Messages marked as read successfully"})
}

func (s *Server) getPersonalChatRooms(c *gin.Context) {
	rooms, err := s.chat.ListPersonalRooms(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_rooms": rooms,
		"message":    "Personal chat rooms retrieved successfully",
	})
}

func (s *Server) getPersonalChatRoom(c *gin.Context) {
	room, err := s.chat.GetOrCreatePersonalRoom(c.Request.Context(), c.Param("user_a"), c.Param("user_b"), s.currentUsername(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_room": room,
		"message":   "Personal chat room retrieved successfully",
	})
}

func (s *Server) getAllChatRooms(c *gin.Context) {
	rooms, err := s.chat.ListRoomsForUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chat_rooms": rooms,
		"message":    "Chat rooms retrieved successfully",
	})
}

func (s *Server) getProjectMessages(c *gin.Context) {
	projectID := c.Param("project_id")
	if _, err := s.projects.GetProject(c.Request.Context(), projectID); err != nil {
		respondError(c, err)
		return
	}

	messages, err := s.chat.GetProjectMessages(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"message":  "Messages retrieved successfully",
	})
}

func (s *Server) createProjectMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
		return
	}

	username := s.currentUsername(c)
	if username == "" {
		username = req.Username
	}
	if username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	msg, err := s.chat.CreateProjectMessage(c.Request.Context(), c.Param("project_id"), username, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      msg,
		"message_text": "Message created successfully",
	})
}

func (s *Server) getShotMessages(c *gin.Context) {
	shotID := c.Param("shot_id")
	if _, err := s.shots.GetShot(c.Request.Context(), shotID); err != nil {
		respondError(c, err)
		return
	}

	messages, err := s.chat.GetShotMessages(c.Request.Context(), shotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"message":  "Messages retrieved successfully",
	})
}

// createShotMessage accepts either JSON (content, optional file_id of an
// already-uploaded file) or multipart form data with an inline file that
// gets stored first and attached to the message.
func (s *Server) createShotMessage(c *gin.Context) {
	shotID := c.Param("shot_id")
	if _, err := s.shots.GetShot(c.Request.Context(), shotID); err != nil {
		respondError(c, err)
		return
	}

	var username, content, fileID string

	if header, err := c.FormFile("file"); err == nil {
		username = c.PostForm("username")
		if username == "" {
			username = s.currentUsername(c)
		}
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			return
		}
		content = c.PostForm("content")

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
		fileID = record.ID.Hex()
	} else {
		var req postMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no data provided"})
			return
		}
		username = s.currentUsername(c)
		if username == "" {
			username = req.Username
		}
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			return
		}
		content = req.Content
		fileID = req.FileID
	}

	msg, err := s.chat.CreateShotMessage(c.Request.Context(), shotID, username, content, fileID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      msg,
		"message_text": "Message created successfully",
	})
}
