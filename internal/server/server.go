// Package server exposes a finished tile pyramid over HTTP: the DZI
// descriptor, the tile files and the bundled viewer page.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiesman99/deepzoom/internal/pyramid"
)

// Server serves one output directory containing {name}.dzi,
// {name}_files/ and viewer.html.
type Server struct {
	dir       string
	name      string
	version   string
	startTime time.Time
}

// New creates a server for an output directory.
func New(dir, name, version string) *Server {
	return &Server{
		dir:       dir,
		name:      name,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status  string    `json:"status"`
	Time    time.Time `json:"timestamp"`
	Uptime  int       `json:"uptime_seconds"`
	Version string    `json:"version"`
}

// InfoResponse is the payload of GET /info, derived from the pyramid
// descriptor.
type InfoResponse struct {
	Name       string `json:"name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	TileSize   int    `json:"tile_size"`
	Overlap    int    `json:"overlap"`
	Format     string `json:"format"`
	LevelCount int    `json:"level_count"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Routes builds the chi router with the standard middleware stack.
func (s *Server) Routes(timeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", s.handleHealth)
	r.Get("/info", s.handleInfo)
	r.Get("/", s.handleIndex)
	r.Handle("/*", http.FileServer(http.Dir(s.dir)))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Time:    time.Now(),
		Uptime:  int(time.Since(s.startTime).Seconds()),
		Version: s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	d, err := pyramid.ReadDescriptor(filepath.Join(s.dir, s.name+".dzi"))
	if err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, "NO_PYRAMID",
			fmt.Sprintf("no descriptor for %q: render it first", s.name))
		return
	}

	resp := InfoResponse{
		Name:       s.name,
		Width:      d.Size.Width,
		Height:     d.Size.Height,
		TileSize:   d.TileSize,
		Overlap:    d.Overlap,
		Format:     d.Format,
		LevelCount: d.LevelCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding info response: %v", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	viewer := filepath.Join(s.dir, "viewer.html")
	if _, err := os.Stat(viewer); err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, "NO_VIEWER",
			"viewer.html not found: render the pyramid first")
		return
	}
	http.ServeFile(w, r, viewer)
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errorCode, Message: message})
}
