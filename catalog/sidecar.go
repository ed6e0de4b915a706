package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nicolagi/cloudbank/storage"
)

const (
	// UploadPrefix is where upload blobs live in the store.
	UploadPrefix = "uploads/"

	// SidecarPrefix is where per-upload metadata documents live.
	SidecarPrefix = "metadata/"
)

// SidecarKey returns the store key of the metadata document for an upload
// key, e.g. "metadata/uploads/<uuid>_flow.nc.json".
func SidecarKey(uploadKey string) string {
	return SidecarPrefix + uploadKey + ".json"
}

// WriteSidecar stores rec as a JSON document next to its upload. It is
// called exactly once per upload; sidecars are never mutated afterwards.
// There is deliberately no rollback of the upload if this fails: the caller
// logs and moves on, and the raw uploads/ listing covers the orphan.
func WriteSidecar(ctx context.Context, store storage.ObjectStore, rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("could not encode sidecar for %q: %w", rec.ID, err)
	}
	return store.Put(ctx, SidecarKey(rec.ID), value, "application/json")
}

// ReadSidecar loads the metadata document for an upload key. It returns
// storage.ErrNotFound (wrapped) if there is no sidecar.
func ReadSidecar(ctx context.Context, store storage.ObjectStore, uploadKey string) (Record, error) {
	value, err := store.Get(ctx, SidecarKey(uploadKey))
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return Record{}, fmt.Errorf("corrupt sidecar for %q: %w", uploadKey, err)
	}
	return rec, nil
}

// uploadKeyOf maps a sidecar object key back to its upload key, returning
// false for objects under metadata/ that are not sidecars.
func uploadKeyOf(sidecarKey string) (string, bool) {
	if !strings.HasPrefix(sidecarKey, SidecarPrefix) || !strings.HasSuffix(sidecarKey, ".json") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(sidecarKey, SidecarPrefix), ".json"), true
}
