package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/gops/agent"
	"github.com/nicolagi/cloudbank/catalog"
	"github.com/nicolagi/cloudbank/storage"
	"github.com/nicolagi/cloudbank/web"
	log "github.com/sirupsen/logrus"
)

func main() {
	defaultConfigFile := os.ExpandEnv("$HOME/lib/cloudbank/portal.config")
	configFile := flag.String("config", defaultConfigFile, "location of configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.WithFields(log.Fields{
			"err":  err,
			"path": *configFile,
		}).Fatal("Could not load configuration")
	}
	cfg.applyEnvironment()
	cfg.applyDefaultsForMissingProperties()

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := agent.Listen(agent.Options{
		ShutdownCleanup: true,
	}); err != nil {
		log.WithField("err", err).Warn("Could not start gops agent")
	} else {
		defer agent.Close()
	}

	store, err := newStore(cfg)
	if err != nil {
		log.WithField("err", err).Fatal("Could not set up object store")
	}
	if store == nil {
		log.Warn("No bucket configured; pages will render but uploads will be rejected")
	} else {
		log.Infof("Will store uploads at %s", store.URL(catalog.UploadPrefix))
	}

	server, err := web.New(store, catalog.New(store, catalog.Samples()))
	if err != nil {
		log.WithField("err", err).Fatal("Could not build web server")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	log.WithField("addr", httpServer.Addr).Info("Listening")
	if err := httpServer.ListenAndServe(); err != nil {
		log.WithField("err", err).Fatal("Could not listen and serve")
	}
}

// newStore builds the configured backend. A nil store (only possible with
// the default gcs type and no bucket) means "not configured": the web layer
// rejects uploads kindly instead of crashing.
func newStore(cfg *config) (storage.ObjectStore, error) {
	switch cfg.Store.Type {
	case "gcs":
		if cfg.Bucket == "" {
			return nil, nil
		}
		return storage.NewGCS(cfg.Bucket)
	case "s3":
		return storage.NewS3(cfg.Store.Profile, cfg.Store.Region, cfg.Store.Bucket)
	case "dynamodb":
		return storage.NewDynamoDBStore(cfg.Store.Profile, cfg.Store.Region, cfg.Store.Table)
	case "bolt":
		pathname := os.ExpandEnv(cfg.Store.Path)
		if err := os.MkdirAll(filepath.Dir(pathname), 0700); err != nil {
			return nil, fmt.Errorf("could not ensure directory for %q exists: %w", pathname, err)
		}
		db, err := bolt.Open(pathname, 0600, nil)
		if err != nil {
			return nil, err
		}
		return storage.NewBoltStore(db, filepath.Base(pathname))
	case "disk":
		dir := os.ExpandEnv(cfg.Store.Path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("could not ensure directory %q exists: %w", dir, err)
		}
		return storage.NewDiskStore(dir), nil
	case "memory":
		return storage.NewInMemoryStore("memory"), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}
