// Package catalog assembles the portal's dataset listing: a compiled-in
// sample list merged with whatever the object store holds under the
// uploads/ and metadata/ prefixes.
package catalog

import (
	"path"
	"time"

	"github.com/nicolagi/cloudbank/storage"
)

// Source values for Record.Source.
const (
	SourceSample  = "sample"
	SourceUpload  = "upload"
	SourceListing = "listing"
)

// A Record describes one dataset. Records are written once, at upload time,
// and never mutated. The ID is the upload's full object key and therefore
// contains slashes.
type Record struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UpdateTime  time.Time `json:"update_time"`
	StoragePath string    `json:"storage_path"`
	Source      string    `json:"source,omitempty"`
}

// RecordFromObject derives a Record from a bare object listing, for uploads
// that have no sidecar (or predate sidecars).
func RecordFromObject(info storage.ObjectInfo, storagePath string) Record {
	name := path.Base(info.Key)
	if name == "." || name == "/" {
		name = info.Key
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Record{
		ID:          info.Key,
		Name:        name,
		ContentType: contentType,
		Size:        info.Size,
		UpdateTime:  info.Updated,
		StoragePath: storagePath,
		Source:      SourceListing,
	}
}
