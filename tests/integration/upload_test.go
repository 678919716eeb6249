// Package integration provides end-to-end tests for the Shelfkeep HTTP
// API, exercising the real service, repository and storage layers over
// an in-memory SQLite database and a temp-dir filesystem backend.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/handler"
	"github.com/shelfkeep/shelfkeep/internal/repository/sqlite"
	"github.com/shelfkeep/shelfkeep/internal/service"
	"github.com/shelfkeep/shelfkeep/internal/storage/filesystem"
)

// testStack is the assembled application under test.
type testStack struct {
	server  *httptest.Server
	dataDir string
	tempDir string
}

// newTestStack wires a complete server: SQLite in memory, filesystem
// storage in a temp dir, real services and router.
func newTestStack(t *testing.T) *testStack {
	t.Helper()

	logger := zerolog.Nop()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(":memory:"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	root := t.TempDir()
	dataDir := filepath.Join(root, "uploads")
	tempDir := filepath.Join(root, "temp")

	backend, err := filesystem.New(dataDir, tempDir, logger)
	require.NoError(t, err)

	fileRepo := sqlite.NewFileRepository(db)
	webpageRepo := sqlite.NewWebpageRepository(db)

	uploadCfg := config.UploadConfig{
		MaxFileSize:       1 << 20,
		AllowedExtensions: []string{"jpg", "jpeg", "png", "pdf"},
		FieldName:         "file",
	}
	webpageCfg := config.WebpageConfig{
		FetchTimeout:  2 * time.Second,
		MaxFetchBytes: 1024,
		UserAgent:     "shelfkeep-test/1.0",
	}

	router := handler.NewRouter(handler.RouterConfig{
		FileHandler: handler.NewFileHandler(handler.FileHandlerConfig{
			UploadService: service.NewUploadService(fileRepo, backend, uploadCfg, logger),
			FileService:   service.NewFileService(fileRepo, backend, logger),
			Logger:        logger,
		}),
		WebpageHandler: handler.NewWebpageHandler(
			service.NewWebpageService(webpageRepo, webpageCfg, logger),
			logger,
		),
		DB:     db,
		Logger: logger,
	})

	server := httptest.NewServer(router.Handler())
	t.Cleanup(server.Close)

	return &testStack{server: server, dataDir: dataDir, tempDir: tempDir}
}

func (s *testStack) upload(t *testing.T, filename string, content []byte, tags ...string) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for _, tag := range tags {
		require.NoError(t, w.WriteField("tags", tag))
	}
	require.NoError(t, w.Close())

	resp, err := http.Post(s.server.URL+"/api/upload", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestUploadRetrieveRoundTrip(t *testing.T) {
	stack := newTestStack(t)
	content := []byte("not really a png but close enough")

	uploaded := stack.upload(t, "shelf photo.png", content, "home, shelf")
	storedName := uploaded["file_name"].(string)
	require.True(t, strings.HasSuffix(storedName, ".png"))

	// The blob landed in the uploads dir and nothing lingers in temp.
	_, err := os.Stat(filepath.Join(stack.dataDir, storedName))
	require.NoError(t, err)
	leftovers, err := os.ReadDir(stack.tempDir)
	require.NoError(t, err)
	require.Empty(t, leftovers)

	// Full retrieval.
	resp, err := http.Get(stack.server.URL + "/api/files/" + storedName)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.Equal(t, `inline; filename="shelf photo.png"`, resp.Header.Get("Content-Disposition"))

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, content, got)

	// Ranged retrieval straight from disk.
	req, err := http.NewRequest(http.MethodGet, stack.server.URL+"/api/files/"+storedName, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=4-9")

	rangeResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer rangeResp.Body.Close()
	require.Equal(t, http.StatusPartialContent, rangeResp.StatusCode)
	require.Equal(t, fmt.Sprintf("bytes 4-9/%d", len(content)), rangeResp.Header.Get("Content-Range"))

	slice, err := io.ReadAll(rangeResp.Body)
	require.NoError(t, err)
	require.Equal(t, content[4:10], slice)
}

func TestConcurrentUploadsSameFilename(t *testing.T) {
	stack := newTestStack(t)

	const workers = 4
	type result struct {
		storedName string
		content    string
		err        error
	}
	results := make(chan result, workers)

	for i := 0; i < workers; i++ {
		content := fmt.Sprintf("payload %d", i)
		go func(content string) {
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			part, err := w.CreateFormFile("file", "shared name.png")
			if err == nil {
				_, err = part.Write([]byte(content))
			}
			if err == nil {
				err = w.Close()
			}
			if err != nil {
				results <- result{err: err}
				return
			}

			resp, err := http.Post(stack.server.URL+"/api/upload", w.FormDataContentType(), &buf)
			if err != nil {
				results <- result{err: err}
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				results <- result{err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
				return
			}

			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				results <- result{err: err}
				return
			}
			results <- result{storedName: body["file_name"].(string), content: content}
		}(content)
	}

	stored := make(map[string]string, workers)
	for i := 0; i < workers; i++ {
		res := <-results
		require.NoError(t, res.err)
		stored[res.storedName] = res.content
	}

	// Identical original filenames must yield distinct stored names.
	require.Len(t, stored, workers)

	// Every upload is independently retrievable with its own bytes.
	for storedName, content := range stored {
		resp, err := http.Get(stack.server.URL + "/api/files/" + storedName)
		require.NoError(t, err)
		got, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, content, string(got))
	}
}

func TestTagLifecycle(t *testing.T) {
	stack := newTestStack(t)

	stack.upload(t, "a.png", []byte("a"), "vacation", "beach")
	uploaded := stack.upload(t, "b.pdf", []byte("%PDF-1.4"), "work")
	storedName := uploaded["file_name"].(string)

	// Filtered listing hits the real SQLite rows.
	resp, err := http.Get(stack.server.URL + "/api/files?tag=vacation&tag=beach")
	require.NoError(t, err)
	body := decode(t, resp)
	require.Len(t, body["files"], 1)

	// Replace b's tags and confirm the distinct tag set follows.
	payload := strings.NewReader(`{"tags": ["archive"]}`)
	req, err := http.NewRequest(http.MethodPut, stack.server.URL+"/api/files/"+storedName+"/tags", payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	putResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, putResp.StatusCode)
	require.Equal(t, []any{"archive"}, decode(t, putResp)["tags"])

	tagsResp, err := http.Get(stack.server.URL + "/api/tags")
	require.NoError(t, err)
	tags := decode(t, tagsResp)["tags"].([]any)
	require.ElementsMatch(t, []any{"vacation", "beach", "archive"}, tags)
}

func TestDeleteRemovesBlobAndMetadata(t *testing.T) {
	stack := newTestStack(t)

	uploaded := stack.upload(t, "gone.png", []byte("bye"))
	storedName := uploaded["file_name"].(string)

	req, err := http.NewRequest(http.MethodDelete, stack.server.URL+"/api/files/"+storedName, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = os.Stat(filepath.Join(stack.dataDir, storedName))
	require.True(t, os.IsNotExist(err))

	getResp, err := http.Get(stack.server.URL + "/api/files/" + storedName)
	require.NoError(t, err)
	getResp.Body.Close()
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestWebpageSaveAndList(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Shelf Reading</title></head></html>`)
	}))
	defer target.Close()

	stack := newTestStack(t)

	payload := fmt.Sprintf(`{"url": %q, "tags": ["later"]}`, target.URL)
	resp, err := http.Post(stack.server.URL+"/api/save-webpage", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Shelf Reading", decode(t, resp)["title"])

	listResp, err := http.Get(stack.server.URL + "/api/webpages")
	require.NoError(t, err)
	pages := decode(t, listResp)["webpages"].([]any)
	require.Len(t, pages, 1)
	require.Equal(t, "Shelf Reading", pages[0].(map[string]any)["title"])
}

func TestHealthEndpointPingsDatabase(t *testing.T) {
	stack := newTestStack(t)

	resp, err := http.Get(stack.server.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", decode(t, resp)["status"])
}
