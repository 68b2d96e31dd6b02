// Package dashboard serves a small JSON status API over the daemon's live
// state: active merge sessions, staged artifacts, and recent notes.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nibras/valet/internal/merge"
	"github.com/nibras/valet/internal/models"
	"github.com/nibras/valet/internal/staging"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	DB     *gorm.DB
	Store  *staging.Store
	Merges *merge.Manager
	Port   int
	Out    io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := newRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with all routes registered.
func newRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("dashboard: db is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("dashboard: store is required")
	}
	if opts.Merges == nil {
		return nil, fmt.Errorf("dashboard: merge manager is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/api/merge/sessions", func(c *gin.Context) {
		sessions := opts.Merges.Sessions()
		c.JSON(http.StatusOK, gin.H{
			"count":    len(sessions),
			"sessions": sessions,
		})
	})

	router.GET("/api/staging", func(c *gin.Context) {
		stats := opts.Store.Stats()
		c.JSON(http.StatusOK, gin.H{
			"artifacts": stats.Artifacts,
			"bytes":     stats.Bytes,
		})
	})

	router.GET("/api/notes/recent", func(c *gin.Context) {
		var recent []models.Note
		if err := opts.DB.Order("id DESC").Limit(20).Find(&recent).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notes": recent})
	})

	return router, nil
}
