package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"

	"github.com/lostinspiration/loki-sink/internal/payload"
)

func testRequest() payload.PushRequest {
	return payload.Wrap([]payload.Stream{
		payload.NewStream(map[string]string{"app": "test"}, "123", `{"Message":"hi"}`),
	})
}

func TestSendGzipBody(t *testing.T) {
	var gotEncoding string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		gotBody, _ = io.ReadAll(zr)
		w.WriteHeader(204)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Send(testRequest()); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotEncoding != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", gotEncoding)
	}
	v, err := fastjson.ParseBytes(gotBody)
	if err != nil {
		t.Fatalf("decompressed body is not JSON: %v", err)
	}
	if len(v.GetArray("streams")) != 1 {
		t.Errorf("streams length = %d, want 1", len(v.GetArray("streams")))
	}
}

func TestSendPlainBody(t *testing.T) {
	var gotEncoding string
	var gotType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		if _, err := fastjson.ParseBytes(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		w.WriteHeader(204)
	}))
	defer srv.Close()

	c := New(srv.URL, WithCompression(false))
	if err := c.Send(testRequest()); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotEncoding != "" {
		t.Errorf("Content-Encoding = %q, want empty", gotEncoding)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotType)
	}
}

func TestSendNon2xxReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "entry too far behind", 400)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.Send(testRequest())
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error = %T (%v), want *APIError", err, err)
	}
	if apiErr.StatusCode != 400 {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
}

func TestSendDoesNotRetry(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(500)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Send(testRequest()); err == nil {
		t.Fatal("expected error on 500")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want exactly 1", attempts.Load())
	}
}

func TestSendConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(srv.URL)
	if err := c.Send(testRequest()); err == nil {
		t.Fatal("expected error for closed server")
	}
}
