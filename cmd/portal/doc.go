// Command portal runs the Cloudbank Toy Data Portal: a landing page with an
// upload form, per-dataset pages, and a small JSON API over an object store.
//
// Uploads are stored at "uploads/<uuid>_<filename>" and each gets a JSON
// metadata document at "metadata/<key>.json". The listing endpoints merge a
// compiled-in sample list with whatever those two prefixes hold; the store
// is the only source of truth.
//
// Configuration comes from an optional rjson file (see -config) overridden
// by the environment: GCS_BUCKET selects the bucket for the default gcs
// store type, PORT the listen port (default 8000). Alternative store types
// (s3, dynamodb, bolt, disk, memory) are selected in the file's store
// section. Without any bucket the portal still serves pages and the health
// check, and rejects uploads with a friendly message.
package main // import "github.com/nicolagi/cloudbank/cmd/portal"
