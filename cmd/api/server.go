package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/johwaworks/QEPipeline/internal/auth"
	"github.com/johwaworks/QEPipeline/internal/config"
	"github.com/johwaworks/QEPipeline/internal/data"
	"github.com/johwaworks/QEPipeline/internal/middleware"
	"github.com/johwaworks/QEPipeline/internal/normalize"
)

// Server bundles the stores and configuration the HTTP handlers need.
type Server struct {
	cfg       *config.Config
	users     *data.UsersStore
	projects  *data.ProjectsStore
	shots     *data.ShotsStore
	files     *data.FilesStore
	chat      *data.ChatStore
	deletions *data.DeletionsStore
	jwtMgr    *auth.JWTManager
	limiter   *middleware.LimiterStore
}

// NewServer wires a Server from its dependencies.
func NewServer(cfg *config.Config, users *data.UsersStore, projects *data.ProjectsStore, shots *data.ShotsStore, files *data.FilesStore, chat *data.ChatStore, deletions *data.DeletionsStore, jwtMgr *auth.JWTManager, limiter *middleware.LimiterStore) *Server {
	return &Server{
		cfg:       cfg,
		users:     users,
		projects:  projects,
		shots:     shots,
		files:     files,
		chat:      chat,
		deletions: deletions,
		jwtMgr:    jwtMgr,
		limiter:   limiter,
	}
}

// respondError maps data-layer sentinel errors onto HTTP status codes.
// Anything unexpected is logged and surfaced as a 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, data.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, data.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, data.ErrAlreadyExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, data.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// currentUsername resolves the acting user: verified JWT claims win,
// then an explicit username supplied by older clients in the query
// string or the X-Username header.
func (s *Server) currentUsername(c *gin.Context) string {
	if claims, ok := claimsFrom(c); ok {
		return claims.Username
	}
	if u := c.Query("username"); u != "" {
		return normalize.Username(u)
	}
	if u := c.GetHeader("X-Username"); u != "" {
		return normalize.Username(u)
	}
	return ""
}

// isAdminName reports whether the username is the configured admin
// account.
func (s *Server) isAdminName(username string) bool {
	return strings.EqualFold(strings.TrimSpace(username), s.cfg.AdminUsername)
}
