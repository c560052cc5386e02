package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redirectServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/pub/firefox-120.0.tar.bz2", http.StatusFound)
	})
	mux.HandleFunc("/pub/firefox-120.0.tar.bz2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("artifact"))
	})
	return httptest.NewServer(mux)
}

func TestWithoutRedirects(t *testing.T) {
	server := redirectServer()
	defer server.Close()

	resp, err := GetHttpClient(WithoutRedirects()).Get(server.URL + "/latest")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/pub/firefox-120.0.tar.bz2", resp.Header.Get("Location"))
}

func TestFollowsRedirectsByDefault(t *testing.T) {
	server := redirectServer()
	defer server.Close()

	resp, err := GetHttpClient(WithRedirectLogging()).Get(server.URL + "/latest")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/pub/firefox-120.0.tar.bz2", resp.Request.URL.Path)
}
