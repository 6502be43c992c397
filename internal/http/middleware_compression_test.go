package httpx

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportBody = strings.Repeat(`{"scene_id":"s1","category":"fire","severity":"high"}`, 200)

func jsonHandler(status int, contentType string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		if status != http.StatusNoContent {
			_, _ = io.WriteString(w, reportBody)
		}
	})
}

func serveCompressed(t *testing.T, h http.Handler, method, acceptEncoding string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, "/v1/security/reports/r1", nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	rec := httptest.NewRecorder()
	Compression(5)(h).ServeHTTP(rec, req)
	resp := rec.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readGzip(t *testing.T, r io.Reader) string {
	t.Helper()
	zr, err := gzip.NewReader(r)
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(b)
}

func TestCompression_AcceptEncoding(t *testing.T) {
	tests := []struct {
		accept string
		gzip   bool
	}{
		{"gzip", true},
		{"gzip, deflate, br", true},
		{"br;q=1.0, gzip;q=0.5", true},
		{"gzip;q=0", false},
		{"gzip;q=0.0", false},
		{"deflate", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			resp := serveCompressed(t, jsonHandler(http.StatusOK, "application/json"), http.MethodGet, tt.accept)
			if tt.gzip {
				assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
				assert.Equal(t, "Accept-Encoding", resp.Header.Get("Vary"))
				assert.Empty(t, resp.Header.Get("Content-Length"))
				assert.Equal(t, reportBody, readGzip(t, resp.Body))
				return
			}
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
			b, _ := io.ReadAll(resp.Body)
			assert.Equal(t, reportBody, string(b))
		})
	}
}

func TestCompression_Passthrough(t *testing.T) {
	tests := []struct {
		name   string
		h      http.Handler
		method string
	}{
		{"binary content", jsonHandler(http.StatusOK, "application/pdf"), http.MethodGet},
		{"no content", jsonHandler(http.StatusNoContent, "application/json"), http.MethodGet},
		{"head", jsonHandler(http.StatusOK, "application/json"), http.MethodHead},
		{"already encoded", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Encoding", "br")
			_, _ = io.WriteString(w, "xx")
		}), http.MethodGet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serveCompressed(t, tt.h, tt.method, "gzip")
			assert.NotEqual(t, "gzip", resp.Header.Get("Content-Encoding"))
		})
	}
}

func TestCompression_StatusPreserved(t *testing.T) {
	resp := serveCompressed(t, jsonHandler(http.StatusGone, "application/json"), http.MethodGet, "gzip")
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, reportBody, readGzip(t, resp.Body))
}
