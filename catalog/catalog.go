package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicolagi/cloudbank/storage"
	log "github.com/sirupsen/logrus"
)

// A Catalog merges the compiled-in samples with records discovered in the
// object store. It holds no state of its own; every List or Get goes back
// to the store, which is the sole source of truth.
type Catalog struct {
	samples []Record
	store   storage.ObjectStore // nil when no bucket is configured
}

func New(store storage.ObjectStore, samples []Record) *Catalog {
	return &Catalog{samples: samples, store: store}
}

// List returns samples followed by discovered records, deduplicated by ID.
// The order within the discovered part is the store's listing order; no
// further sorting is applied. A store failure degrades to whatever was
// assembled before the failure, never to an error.
func (c *Catalog) List(ctx context.Context) []Record {
	return Merge(c.samples, c.discover(ctx))
}

// Get looks up one record: samples first, then the authoritative sidecar,
// then the raw object as a last resort. It returns storage.ErrNotFound
// (possibly wrapped) when the dataset does not exist anywhere.
func (c *Catalog) Get(ctx context.Context, id string) (Record, error) {
	for _, rec := range c.samples {
		if rec.ID == id {
			return rec, nil
		}
	}
	if c.store == nil {
		return Record{}, fmt.Errorf("%q: %w", id, storage.ErrNotFound)
	}
	rec, err := ReadSidecar(ctx, c.store, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.WithFields(log.Fields{
			"id":  id,
			"err": err,
		}).Warn("Could not read sidecar, falling back to object listing")
	}
	info, err := c.store.Stat(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Record{}, err
		}
		// Unavailable backend surfaces as not found, by the error design:
		// nothing retries.
		return Record{}, fmt.Errorf("%q: %v: %w", id, err, storage.ErrNotFound)
	}
	return RecordFromObject(info, c.store.URL(id)), nil
}

// discover lists sidecars (authoritative) and upload objects (fallback for
// entries lacking a sidecar), sidecar entries taking precedence. Orphan
// sidecars whose upload has vanished are still included.
func (c *Catalog) discover(ctx context.Context) []Record {
	if c.store == nil {
		return nil
	}
	byID := make(map[string]Record)
	sidecars, err := c.store.List(ctx, SidecarPrefix)
	if err != nil {
		log.WithField("err", err).Warn("Could not list sidecars")
	}
	for _, info := range sidecars {
		uploadKey, ok := uploadKeyOf(info.Key)
		if !ok {
			continue
		}
		rec, err := ReadSidecar(ctx, c.store, uploadKey)
		if err != nil {
			log.WithFields(log.Fields{
				"key": info.Key,
				"err": err,
			}).Warn("Skipping unreadable sidecar")
			continue
		}
		byID[rec.ID] = rec
	}

	var discovered []Record
	seen := make(map[string]bool)
	uploads, err := c.store.List(ctx, UploadPrefix)
	if err != nil {
		log.WithField("err", err).Warn("Could not list uploads")
	}
	for _, info := range uploads {
		if rec, ok := byID[info.Key]; ok {
			discovered = append(discovered, rec)
		} else {
			discovered = append(discovered, RecordFromObject(info, c.store.URL(info.Key)))
		}
		seen[info.Key] = true
	}
	for id, rec := range byID {
		if !seen[id] {
			discovered = append(discovered, rec)
		}
	}
	return discovered
}

// Merge concatenates two record sequences, dropping later records whose ID
// was already seen. It is a pure function so precedence rules are testable
// without a store.
func Merge(primary, secondary []Record) []Record {
	merged := make([]Record, 0, len(primary)+len(secondary))
	seen := make(map[string]bool)
	for _, seq := range [][]Record{primary, secondary} {
		for _, rec := range seq {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			merged = append(merged, rec)
		}
	}
	return merged
}
