package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/flanksource/fxinstall/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = "#!/bin/sh\necho firefox\n"

func upstream(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/firefox-120.0.tar.bz2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write([]byte(payload))
	})
	mux.HandleFunc("/truncated.tar.bz2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	})
	mux.HandleFunc("/gone.tar.bz2", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func entries(t *testing.T, dir string) []string {
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name())
	}
	return names
}

func TestFetch(t *testing.T) {
	server := upstream(t)
	tmpDir := t.TempDir()

	artifact := &types.ResolvedArtifact{URL: server.URL + "/firefox-120.0.tar.bz2", Filename: "firefox-120.0.tar.bz2"}
	result, err := Fetch(context.Background(), artifact, tmpDir, nil)
	require.NoError(t, err)

	assert.Equal(t, "firefox-120.0.tar.bz2", result.Filename)
	assert.Equal(t, int64(len(payload)), result.Size)
	assert.True(t, strings.HasPrefix(result.Path, tmpDir))
	assert.True(t, strings.HasSuffix(result.Path, "-firefox-120.0.tar.bz2"))

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
}

func TestFetchNonOK(t *testing.T) {
	server := upstream(t)
	tmpDir := t.TempDir()

	artifact := &types.ResolvedArtifact{URL: server.URL + "/gone.tar.bz2", Filename: "gone.tar.bz2"}
	_, err := Fetch(context.Background(), artifact, tmpDir, nil)

	var unavailable *types.ErrUpstreamUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, http.StatusGone, unavailable.StatusCode)
	assert.Empty(t, entries(t, tmpDir))
}

func TestFetchMidStreamFailureRemovesTempFile(t *testing.T) {
	server := upstream(t)
	tmpDir := t.TempDir()

	artifact := &types.ResolvedArtifact{URL: server.URL + "/truncated.tar.bz2", Filename: "truncated.tar.bz2"}
	_, err := Fetch(context.Background(), artifact, tmpDir, nil)

	require.Error(t, err)
	assert.Equal(t, types.KindTransport, types.Classify(err))
	assert.Empty(t, entries(t, tmpDir))
}

func TestFetchCancelled(t *testing.T) {
	server := upstream(t)
	tmpDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	artifact := &types.ResolvedArtifact{URL: server.URL + "/firefox-120.0.tar.bz2", Filename: "firefox-120.0.tar.bz2"}
	_, err := Fetch(ctx, artifact, tmpDir, nil)

	require.Error(t, err)
	assert.Equal(t, types.KindTransport, types.Classify(err))
	assert.Empty(t, entries(t, tmpDir))
}

func TestFetchConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := Fetch(context.Background(), &types.ResolvedArtifact{URL: url + "/x.exe", Filename: "x.exe"}, t.TempDir(), nil)
	assert.Equal(t, types.KindTransport, types.Classify(err))
}

func TestProgressReaderCountsBytes(t *testing.T) {
	pr := NewProgressReader(strings.NewReader(payload), int64(len(payload)), nil)
	buf := make([]byte, 4)
	for {
		if _, err := pr.Read(buf); err != nil {
			break
		}
	}
	assert.Equal(t, int64(len(payload)), pr.Current())
}
