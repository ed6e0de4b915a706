package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/nicolagi/cloudbank/catalog"
	"github.com/nicolagi/cloudbank/storage"
	"github.com/nicolagi/cloudbank/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, store storage.ObjectStore, samples []catalog.Record) *httptest.Server {
	t.Helper()
	s, err := web.New(store, catalog.New(store, samples))
	require.Nil(t, err)
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.Nil(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.Nil(t, err)
	return resp.StatusCode, string(body)
}

func postUpload(t *testing.T, url, filename, description string, contents []byte) (int, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.Nil(t, err)
		_, err = fw.Write(contents)
		require.Nil(t, err)
	}
	require.Nil(t, mw.WriteField("description", description))
	require.Nil(t, mw.Close())
	resp, err := http.Post(url+"/upload", mw.FormDataContentType(), &buf)
	require.Nil(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.Nil(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	// Health must not depend on bucket configuration.
	for name, store := range map[string]storage.ObjectStore{
		"without bucket": nil,
		"with bucket":    storage.NewInMemoryStore("test-bucket"),
	} {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t, store, nil)
			status, body := get(t, ts.URL+"/healthz")
			assert.Equal(t, http.StatusOK, status)
			assert.JSONEq(t, `{"status":"ok"}`, body)
		})
	}
}

func TestHomepage(t *testing.T) {
	ts := newTestServer(t, nil, catalog.Samples())
	status, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Cloudbank Toy Data Portal")
	assert.Contains(t, body, "streamflow-daily.nc")
}

func TestUploadWithoutBucket(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	status, body := postUpload(t, ts.URL, "flow.nc", "Sample dataset", []byte("data"))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Sample dataset")
	assert.Contains(t, body, "GCS_BUCKET is not set; file not stored.")
}

func TestUploadWithoutFile(t *testing.T) {
	ts := newTestServer(t, storage.NewInMemoryStore("test-bucket"), nil)
	status, body := postUpload(t, ts.URL, "", "just notes", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "just notes")
	assert.Contains(t, body, "No file uploaded.")
}

func TestUploadRoundTrip(t *testing.T) {
	store := storage.NewInMemoryStore("test-bucket")
	ts := newTestServer(t, store, catalog.Samples())

	status, body := postUpload(t, ts.URL, "flow.nc", "test run", []byte("netcdf bytes"))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "test run")

	pathPattern := regexp.MustCompile(`gs://test-bucket/(uploads/[0-9a-f-]{36}_flow\.nc)`)
	m := pathPattern.FindStringSubmatch(body)
	require.NotNil(t, m, "confirmation should contain the storage path, got: %s", body)
	storagePath, key := m[0], m[1]

	t.Run("blob and sidecar were stored", func(t *testing.T) {
		ctx := context.Background()
		value, err := store.Get(ctx, key)
		require.Nil(t, err)
		assert.Equal(t, []byte("netcdf bytes"), value)
		rec, err := catalog.ReadSidecar(ctx, store, key)
		require.Nil(t, err)
		assert.Equal(t, "test run", rec.Description)
		assert.Equal(t, storagePath, rec.StoragePath)
	})

	t.Run("listing includes the new entry", func(t *testing.T) {
		status, body := get(t, ts.URL+"/api/datasets")
		require.Equal(t, http.StatusOK, status)
		var payload struct {
			Datasets []map[string]interface{} `json:"datasets"`
		}
		require.Nil(t, json.Unmarshal([]byte(body), &payload))
		var paths []string
		for _, ds := range payload.Datasets {
			paths = append(paths, fmt.Sprint(ds["storage_path"]))
			for _, field := range []string{"id", "name", "content_type", "size", "update_time", "storage_path"} {
				assert.Contains(t, ds, field)
			}
		}
		assert.Contains(t, paths, storagePath)
	})

	t.Run("single-record endpoints find it", func(t *testing.T) {
		status, body := get(t, ts.URL+"/api/datasets/"+key)
		require.Equal(t, http.StatusOK, status)
		var rec catalog.Record
		require.Nil(t, json.Unmarshal([]byte(body), &rec))
		assert.Equal(t, key, rec.ID)
		assert.Equal(t, "test run", rec.Description)

		status, body = get(t, ts.URL+"/datasets/"+key)
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, body, "flow.nc")
		assert.Contains(t, body, storagePath)
	})
}

func TestUploadSurvivesSidecarFailure(t *testing.T) {
	store := &sidecarFailingStore{delegate: storage.NewInMemoryStore("test-bucket")}
	ts := newTestServer(t, store, nil)
	status, body := postUpload(t, ts.URL, "flow.nc", "test run", []byte("data"))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Stored at gs://test-bucket/uploads/")
}

func TestDatasetNotFound(t *testing.T) {
	ts := newTestServer(t, storage.NewInMemoryStore("test-bucket"), catalog.Samples())
	for _, target := range []string{"/api/datasets/uploads/absent.nc", "/datasets/uploads/absent.nc"} {
		status, body := get(t, ts.URL+target)
		assert.Equal(t, http.StatusNotFound, status, target)
		assert.JSONEq(t, `{"detail":"Dataset not found"}`, body)
	}
}

func TestAPIDatasetsAlwaysAList(t *testing.T) {
	ts := newTestServer(t, nil, nil)
	status, body := get(t, ts.URL+"/api/datasets")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"datasets":[]}`, body)
}

// sidecarFailingStore stores upload blobs fine but fails every write under
// metadata/, to exercise the accepted inconsistency window.
type sidecarFailingStore struct {
	delegate *storage.InMemoryStore
}

func (s *sidecarFailingStore) Put(ctx context.Context, key string, value []byte, contentType string) error {
	if strings.HasPrefix(key, catalog.SidecarPrefix) {
		return storage.ErrUnavailable
	}
	return s.delegate.Put(ctx, key, value, contentType)
}

func (s *sidecarFailingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.delegate.Get(ctx, key)
}

func (s *sidecarFailingStore) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	return s.delegate.Stat(ctx, key)
}

func (s *sidecarFailingStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return s.delegate.List(ctx, prefix)
}

func (s *sidecarFailingStore) URL(key string) string {
	return s.delegate.URL(key)
}
