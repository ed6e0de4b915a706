package main

import (
	"os"
	"strconv"

	"github.com/rogpeppe/rjson"
)

type config struct {
	Bucket string `json:"bucket"`
	Port   int    `json:"port"`
	Debug  bool   `json:"debug"`

	Store struct {
		Type string `json:"type"`

		// Properties for "s3" and "dynamodb" types.
		Profile string `json:"profile"`
		Region  string `json:"region"`
		Bucket  string `json:"bucket"`
		Table   string `json:"table"`

		// Properties for "bolt" and "disk" types.
		Path string `json:"path"`
	} `json:"store"`
}

// loadConfig reads the optional rjson configuration file. A missing file is
// not an error; the portal can run entirely off the environment.
func loadConfig(pathname string) (*config, error) {
	f, err := os.Open(pathname)
	if os.IsNotExist(err) {
		return &config{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	var c *config
	err = rjson.NewDecoder(f).Decode(&c)
	return c, err
}

// applyEnvironment lets the hosting platform's variables override the file.
func (c *config) applyEnvironment() {
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		c.Bucket = bucket
	}
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Port = n
		}
	}
}

func (c *config) applyDefaultsForMissingProperties() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.Store.Type == "" {
		c.Store.Type = "gcs"
	}
	if c.Store.Path == "" {
		switch c.Store.Type {
		case "bolt":
			c.Store.Path = "$HOME/lib/cloudbank/store.db"
		case "disk":
			c.Store.Path = "$HOME/lib/cloudbank/data"
		}
	}
}
