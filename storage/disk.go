package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore implements ObjectStore on a host filesystem directory. Object
// keys map to relative paths, so prefixes like "uploads/" become
// subdirectories. Each object has a sibling attrs file carrying what the
// filesystem can't (content type).
type DiskStore struct {
	dir string
}

const attrsSuffix = ".attrs"

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

func (s *DiskStore) Put(_ context.Context, key string, value []byte, contentType string) error {
	valpath := s.pathFor(key)
	if err := writeRetryingMkdir(valpath, value); err != nil {
		return err
	}
	attrs, err := json.Marshal(ObjectInfo{
		Key:         key,
		Size:        int64(len(value)),
		ContentType: contentType,
	})
	if err != nil {
		return err
	}
	return writeRetryingMkdir(valpath+attrsSuffix, attrs)
}

func writeRetryingMkdir(valpath string, value []byte) error {
	err := os.WriteFile(valpath, value, 0600)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("could not write %q: %w", valpath, err)
	}
	if err := os.MkdirAll(filepath.Dir(valpath), 0700); err != nil {
		return fmt.Errorf("could not make dir for %q: %w", valpath, err)
	}
	return os.WriteFile(valpath, value, 0600)
}

func (s *DiskStore) Get(_ context.Context, key string) (value []byte, err error) {
	value, err = os.ReadFile(s.pathFor(key))
	if os.IsNotExist(err) {
		err = fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return
}

func (s *DiskStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	info, err := s.statPath(s.pathFor(key), key)
	if os.IsNotExist(err) {
		err = fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return info, err
}

func (s *DiskStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, attrsSuffix) {
			return nil
		}
		key, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		key = filepath.ToSlash(key)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.statPath(path, key)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	return infos, err
}

func (s *DiskStore) URL(key string) string {
	return fmt.Sprintf("file://%s/%s", s.dir, key)
}

func (s *DiskStore) statPath(path, key string) (ObjectInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return ObjectInfo{}, err
	}
	info := ObjectInfo{
		Key:     key,
		Size:    fi.Size(),
		Updated: fi.ModTime().UTC(),
	}
	// The attrs file is best effort; an object written by hand just has no
	// content type.
	if attrs, err := os.ReadFile(path + attrsSuffix); err == nil {
		var stored ObjectInfo
		if err := json.Unmarshal(attrs, &stored); err == nil {
			info.ContentType = stored.ContentType
		}
	}
	return info, nil
}

func (s *DiskStore) pathFor(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}
