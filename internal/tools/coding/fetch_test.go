package coding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchURLPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	result := FetchURL(context.Background(), srv.URL, 1000, 2*time.Second)
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "hello world")
	require.Contains(t, result.ForLLM, "status=200")
}

func TestFetchURLStripsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><script>evil()</script><p>Hello</p></body></html>"))
	}))
	defer srv.Close()

	result := FetchURL(context.Background(), srv.URL, 1000, 2*time.Second)
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "Hello")
	require.NotContains(t, result.ForLLM, "evil()")
}

func TestFetchURLTruncatesAtMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	result := FetchURL(context.Background(), srv.URL, 10, 2*time.Second)
	require.NoError(t, result.Err)
	require.Contains(t, result.ForLLM, "truncated=true")
}

func TestFetchURLRejectsNonHTTPScheme(t *testing.T) {
	result := FetchURL(context.Background(), "ftp://example.com/file", 1000, time.Second)
	require.Error(t, result.Err)
}
