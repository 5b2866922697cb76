// Package httpapi exposes the pipeline over HTTP: a JSON document API
// and a websocket chat endpoint.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/meridianhq/ragpipe/internal/core/ports/driven"
	"github.com/meridianhq/ragpipe/internal/core/ports/driving"
)

// Server routes API requests to the pipeline and chat services.
type Server struct {
	engine   *gin.Engine
	docs     driven.DocumentStore
	files    driven.FileStore
	pipeline driving.Pipeline
	chat     driving.ChatSession
	log      *logrus.Logger
}

// New creates the server and registers its routes.
func New(docs driven.DocumentStore, files driven.FileStore, pipeline driving.Pipeline, chat driving.ChatSession, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:   engine,
		docs:     docs,
		files:    files,
		pipeline: pipeline,
		chat:     chat,
		log:      log,
	}

	api := engine.Group("/api")
	{
		api.POST("/documents", s.handleUpload)
		api.GET("/documents", s.handleList)
		api.GET("/documents/:id/download", s.handleDownload)
		api.DELETE("/documents/:id", s.handleDelete)
		api.POST("/documents/:id/search", s.handleSearch)
	}
	engine.GET("/ws/chat", s.handleChat)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.WithField("addr", addr).Info("http server listening")
	return s.engine.Run(addr)
}

func errorResponse(message string) gin.H {
	return gin.H{"status": "error", "message": message}
}
