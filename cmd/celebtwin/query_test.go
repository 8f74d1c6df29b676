package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldr4GO/celebtwin/pkg/client"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			_, hdr, err := r.FormFile("image")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"success": false, "error": "No image provided"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"results": []map[string]any{{"image_path": "celebs/" + hdr.Filename, "similarity_score": 0.5}},
			})
		case "/compare":
			_, _ = w.Write([]byte(`{"success": true, "similarity_score": 0.8, "match_percentage": 80}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeImages(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(paths[i], []byte("img-"+n), 0o600))
	}
	return paths
}

func testCommand(t *testing.T, run func(*cobra.Command, []string) error) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{RunE: run}
	cmd.Flags().String("server", "", "")
	cmd.Flags().String("api-key", "", "")
	cmd.Flags().Bool("json", false, "")
	cmd.Flags().Int("concurrency", 2, "")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(t.Context())
	return cmd, &out
}

func TestRunSearch_JSONKeepsArgumentOrder(t *testing.T) {
	srv := fakeServer(t)
	paths := writeImages(t, "a.jpg", "b.jpg", "c.jpg")

	cmd, out := testCommand(t, runSearch)
	require.NoError(t, cmd.Flags().Set("server", srv.URL))
	require.NoError(t, cmd.Flags().Set("json", "true"))

	require.NoError(t, runSearch(cmd, paths))

	var outcomes []searchOutcome
	require.NoError(t, json.Unmarshal(out.Bytes(), &outcomes))
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, paths[i], o.Image)
		require.NotNil(t, o.Result)
		assert.Equal(t, "celebs/"+filepath.Base(paths[i]), o.Result.Results[0].ImagePath)
	}
}

func TestRunSearch_ReportsMissingFile(t *testing.T) {
	srv := fakeServer(t)
	paths := writeImages(t, "ok.jpg")
	paths = append(paths, filepath.Join(t.TempDir(), "missing.jpg"))

	cmd, out := testCommand(t, runSearch)
	require.NoError(t, cmd.Flags().Set("server", srv.URL))

	err := runSearch(cmd, paths)
	require.ErrorContains(t, err, "1 of 2 searches failed")
	assert.Contains(t, out.String(), "celebs/ok.jpg")
	assert.Contains(t, out.String(), "error:")
}

func TestRunCompare(t *testing.T) {
	srv := fakeServer(t)
	paths := writeImages(t, "a.jpg", "b.jpg")

	cmd, out := testCommand(t, runCompare)
	require.NoError(t, cmd.Flags().Set("server", srv.URL))

	require.NoError(t, runCompare(cmd, paths))
	assert.Equal(t, "Similarity: 0.8000 (80.0% match)\n", out.String())
}

func TestNewClient_EnvFallback(t *testing.T) {
	t.Setenv("CELEBTWIN_SERVER", "http://celebtwin.internal:5000")
	cmd, _ := testCommand(t, runSearch)

	c, err := newClient(cmd)
	require.NoError(t, err)
	assert.NotNil(t, c)

	t.Setenv("CELEBTWIN_SERVER", "not a url")
	_, err = newClient(cmd)
	require.Error(t, err)
}

func TestPrintSearchOutcome(t *testing.T) {
	var buf bytes.Buffer
	printSearchOutcome(&buf, searchOutcome{
		Image:  "me.jpg",
		Result: &client.SearchResult{Success: false, Error: "No face detected"},
	})
	assert.True(t, strings.HasPrefix(buf.String(), "me.jpg\n"))
	assert.Contains(t, buf.String(), "no match: No face detected")
}
