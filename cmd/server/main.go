package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"example.com/miniblog/internal/auth"
	"example.com/miniblog/internal/config"
	"example.com/miniblog/internal/content"
	"example.com/miniblog/internal/db"
	routes "example.com/miniblog/internal/http"
	"example.com/miniblog/internal/session"
	"example.com/miniblog/internal/ws"
)

func main() {
	// Allows running in production (where env vars are set directly)
	// without a .env file.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Init()

	// Storage must be reachable and migrated before we serve anything.
	database, err := db.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	log.Println("Running database migrations...")
	if err := db.Migrate(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations complete.")

	// Session store is owned here and injected; services never reach for
	// ambient session state.
	sessions := session.NewMemoryStore()
	defer sessions.Close()

	authSvc := auth.NewService(database, sessions, cfg.SessionTTL)
	contentSvc := content.NewService(database)

	hub := ws.NewHub()
	go hub.Run()

	router := gin.New()
	env := &routes.Env{
		Auth:       authSvc,
		Content:    contentSvc,
		Hub:        hub,
		SessionTTL: cfg.SessionTTL,
	}
	routes.SetupRoutes(router, env, cfg)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server listening on %s", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
