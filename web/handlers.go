package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/nicolagi/cloudbank/catalog"
	log "github.com/sirupsen/logrus"
)

const maxUploadMemory = 32 << 20

type indexData struct {
	Datasets []catalog.Record
}

type confirmData struct {
	Description string
	Message     string
}

type datasetData struct {
	Record   catalog.Record
	SizeText string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", indexData{
		Datasets: s.catalog.List(r.Context()),
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "could not parse form", http.StatusBadRequest)
		return
	}
	description := strings.TrimSpace(r.FormValue("description"))
	if description == "" {
		description = "No description provided."
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.render(w, http.StatusOK, "confirm.html", confirmData{
			Description: description,
			Message:     "No file uploaded.",
		})
		return
	}
	defer func() {
		_ = file.Close()
	}()

	// The friendly rejection: no bucket, no store calls.
	if s.store == nil {
		s.render(w, http.StatusOK, "confirm.html", confirmData{
			Description: description,
			Message:     "GCS_BUCKET is not set; file not stored.",
		})
		return
	}

	value, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "could not read upload", http.StatusBadRequest)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := catalog.UploadPrefix + uuid.New().String() + "_" + safeFilename(header.Filename)

	if err := s.store.Put(ctx, key, value, contentType); err != nil {
		log.WithFields(log.Fields{
			"key": key,
			"err": err,
		}).Error("Could not store upload")
		s.render(w, http.StatusOK, "confirm.html", confirmData{
			Description: description,
			Message:     "Upload failed; please try again later.",
		})
		return
	}

	rec := catalog.Record{
		ID:          key,
		Name:        safeFilename(header.Filename),
		Description: description,
		ContentType: contentType,
		Size:        int64(len(value)),
		UpdateTime:  time.Now().UTC(),
		StoragePath: s.store.URL(key),
		Source:      catalog.SourceUpload,
	}
	// The upload is already durable; a sidecar failure is logged and
	// accepted, and the raw uploads/ listing covers the orphan.
	if err := catalog.WriteSidecar(ctx, s.store, rec); err != nil {
		log.WithFields(log.Fields{
			"key": key,
			"err": err,
		}).Warn("Stored upload without sidecar")
	}

	s.render(w, http.StatusOK, "confirm.html", confirmData{
		Description: description,
		Message:     fmt.Sprintf("Stored at %s", rec.StoragePath),
	})
}

func (s *Server) handleDatasetPage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Dataset not found"})
		return
	}
	s.render(w, http.StatusOK, "dataset.html", datasetData{
		Record:   rec,
		SizeText: sizeText(rec.Size),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": s.catalog.List(r.Context()),
	})
}

func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Dataset not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithField("err", err).Error("Failed writing response")
	}
}

// safeFilename strips any client-supplied directory parts.
func safeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "upload.nc"
	}
	return name
}

func sizeText(size int64) string {
	return fmt.Sprintf("%.1f MiB", float64(size)/(1024*1024))
}
