// Package web is the portal's HTTP surface: the landing page with its
// upload form, per-dataset pages, a health check, and a small JSON API.
// Handlers are glue; everything durable happens in the object store.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nicolagi/cloudbank/catalog"
	"github.com/nicolagi/cloudbank/storage"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templates embed.FS

// Server holds everything the handlers need. The store is nil when no
// bucket is configured; pages still render and uploads are rejected with a
// friendly message instead of a server error.
type Server struct {
	store   storage.ObjectStore
	catalog *catalog.Catalog
	tmpl    *template.Template
	router  *mux.Router
}

func New(store storage.ObjectStore, cat *catalog.Catalog) (*Server, error) {
	tmpl, err := template.ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("could not parse templates: %w", err)
	}
	s := &Server{
		store:   store,
		catalog: cat,
		tmpl:    tmpl,
	}
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/datasets", s.handleAPIList).Methods(http.MethodGet)
	// Dataset IDs are full object keys, slashes included.
	r.HandleFunc("/api/datasets/{id:.+}", s.handleAPIGet).Methods(http.MethodGet)
	r.HandleFunc("/datasets/{id:.+}", s.handleDatasetPage).Methods(http.MethodGet)
	r.Use(requestLogger)
	s.router = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"duration": time.Since(start),
		}).Debug("Handled request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.WithFields(log.Fields{
			"template": name,
			"err":      err,
		}).Error("Could not render template")
	}
}
