package yadisk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDisk emulates the subset of the Yandex Disk API used by Client
type fakeDisk struct {
	t      *testing.T
	mu     sync.Mutex
	files  map[string][]byte
	trash  map[string][]byte
	server *httptest.Server
}

func newFakeDisk(t *testing.T) *fakeDisk {
	d := &fakeDisk{t: t, files: map[string][]byte{}, trash: map[string][]byte{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/disk/resources/download", d.handleDownloadLink)
	mux.HandleFunc("/v1/disk/resources/upload", d.handleUploadLink)
	mux.HandleFunc("/v1/disk/resources", d.handleRemove)
	mux.HandleFunc("/files/", d.handleFile)
	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

func (d *fakeDisk) client() *Client {
	return New("secret").WithBaseURL(d.server.URL + "/v1/disk")
}

func (d *fakeDisk) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "OAuth secret" {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(apiError{Code: "UnauthorizedError", Description: "Unauthorized"})
		return false
	}
	return true
}

func (d *fakeDisk) handleDownloadLink(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(w, r) {
		return
	}
	path := r.URL.Query().Get("path")
	d.mu.Lock()
	_, ok := d.files[path]
	d.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(apiError{Code: "DiskNotFoundError", Description: "Resource not found."})
		return
	}
	json.NewEncoder(w).Encode(link{Href: d.server.URL + "/files/?path=" + path, Method: http.MethodGet})
}

func (d *fakeDisk) handleUploadLink(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(w, r) {
		return
	}
	path := r.URL.Query().Get("path")
	d.mu.Lock()
	_, exists := d.files[path]
	d.mu.Unlock()
	if exists && r.URL.Query().Get("overwrite") != "true" {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(apiError{Code: "DiskResourceAlreadyExistsError", Description: "exists"})
		return
	}
	json.NewEncoder(w).Encode(link{Href: d.server.URL + "/files/?path=" + path, Method: http.MethodPut})
}

func (d *fakeDisk) handleRemove(w http.ResponseWriter, r *http.Request) {
	if !d.authorized(w, r) {
		return
	}
	assert.Equal(d.t, http.MethodDelete, r.Method)
	path := r.URL.Query().Get("path")

	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	delete(d.files, path)
	if r.URL.Query().Get("permanently") != "true" {
		d.trash[path] = data
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *fakeDisk) handleFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	d.mu.Lock()
	defer d.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		w.Write(d.files[path])
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		d.files[path] = data
		w.WriteHeader(http.StatusCreated)
	}
}

func TestClient_UploadDownload(t *testing.T) {
	disk := newFakeDisk(t)
	client := disk.client()
	ctx := context.Background()

	_, err := client.Download(ctx, "/bart/state.db")
	assert.ErrorIs(t, err, ErrPathNotFound)

	require.NoError(t, client.Upload(ctx, "/bart/state.db", []byte("v1"), false))

	data, err := client.Download(ctx, "/bart/state.db")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	err = client.Upload(ctx, "/bart/state.db", []byte("v2"), false)
	assert.ErrorIs(t, err, ErrPathExists)

	require.NoError(t, client.Upload(ctx, "/bart/state.db", []byte("v2"), true))
	data, err = client.Download(ctx, "/bart/state.db")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestClient_Remove(t *testing.T) {
	disk := newFakeDisk(t)
	client := disk.client()
	ctx := context.Background()

	require.NoError(t, client.Upload(ctx, "/a", []byte("a"), false))
	require.NoError(t, client.Remove(ctx, "/a", false))
	assert.Equal(t, []byte("a"), disk.trash["/a"])

	err := client.Remove(ctx, "/a", false)
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestClient_Unauthorized(t *testing.T) {
	disk := newFakeDisk(t)
	client := New("wrong").WithBaseURL(disk.server.URL + "/v1/disk")

	_, err := client.Download(context.Background(), "/a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnauthorizedError")
}
