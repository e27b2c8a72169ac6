package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/johwaworks/QEPipeline/internal/auth"
	"github.com/johwaworks/QEPipeline/internal/config"
	"github.com/johwaworks/QEPipeline/internal/data"
	"github.com/johwaworks/QEPipeline/internal/db"
	"github.com/johwaworks/QEPipeline/internal/middleware"
)

func main() {
	log.SetLevel(log.InfoLevel)
	if gin.Mode() == gin.ReleaseMode {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.Info("starting QEPipeline API")

	cfg := config.Load()

	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = dbClient.Close(ctx)
	}()

	if err := dbClient.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create indexes: %v", err)
	}

	adminHash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("failed to hash admin password: %v", err)
	}
	if err := dbClient.EnsureAdmin(ctx, cfg.AdminUsername, adminHash); err != nil {
		log.Fatalf("failed to seed admin account: %v", err)
	}

	usersStore := data.NewUsersStore(dbClient.UsersCollection(), dbClient.PendingRegistrationsCollection())
	projectsStore := data.NewProjectsStore(dbClient.ProjectsCollection(), usersStore)
	shotsStore := data.NewShotsStore(dbClient.ShotsCollection(), projectsStore)
	filesStore := data.NewFilesStore(dbClient.FilesCollection(), usersStore)
	chatStore := data.NewChatStore(dbClient.ChatRoomsCollection(), dbClient.MessagesCollection(), usersStore, projectsStore, shotsStore, filesStore)
	deletionsStore := data.NewDeletionsStore(
		dbClient.PendingDeletionsCollection(),
		dbClient.ProjectsCollection(),
		dbClient.ShotsCollection(),
		dbClient.FilesCollection(),
		dbClient.MessagesCollection(),
		dbClient.ChatRoomsCollection(),
		projectsStore,
	)

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)

	// Small burst so a couple of quick retries still pass.
	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, 1*time.Minute)
	defer limiterStore.Stop()

	server := NewServer(cfg, usersStore, projectsStore, shotsStore, filesStore, chatStore, deletionsStore, jwtMgr, limiterStore)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
}
