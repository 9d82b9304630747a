package transport

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restflight/restflight/pkg/debugger"
	"github.com/restflight/restflight/pkg/kind"
)

// buildHandle builds a handle synchronously or fails the test.
func buildHandle(t *testing.T, s *Service, r Request) *Handle {
	t.Helper()

	ready := make(chan *Handle, 1)
	failed := make(chan error, 1)
	s.Build(r, func(h *Handle) { ready <- h }, func(err error) { failed <- err })

	select {
	case h := <-ready:
		return h
	case err := <-failed:
		t.Fatalf("build failed: %v", err)
	case <-time.After(time.Second):
		t.Fatalf("build did not finish")
	}

	return nil
}

// collectDeliveries starts h and waits for all four content-kind deliveries.
func collectDeliveries(t *testing.T, s *Service, h *Handle) map[kind.Kind]Delivery {
	t.Helper()

	ch := make(chan Delivery, len(kind.All()))
	s.Start(h, func(d Delivery) { ch <- d }, nil)

	out := map[kind.Kind]Delivery{}
	for i := 0; i < len(kind.All()); i++ {
		select {
		case d := <-ch:
			out[d.Kind] = d
		case <-time.After(2 * time.Second):
			t.Fatalf("missing deliveries, got %d", len(out))
		}
	}

	return out
}

func TestService_Start_produces_four_interpretations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	s := NewService(srv.Client())
	h := buildHandle(t, s, Request{Method: http.MethodGet, URL: srv.URL})
	deliveries := collectDeliveries(t, s, h)

	require.Len(t, deliveries, 4)

	for _, k := range kind.All() {
		d := deliveries[k]
		assert.True(t, d.Received, "delivery of kind %s should carry response", k)
		assert.Equal(t, http.StatusOK, d.Status)
		assert.NoError(t, d.Err, "kind %s", k)
	}

	assert.Equal(t, []byte(`{"id": 1}`), deliveries[kind.Data].Body)
	assert.Nil(t, deliveries[kind.Empty].Body)
}

func TestService_Start_flags_unexpected_status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "not found"}`))
	}))
	defer srv.Close()

	s := NewService(srv.Client())
	h := buildHandle(t, s, Request{Method: http.MethodGet, URL: srv.URL, AcceptedStatusCodes: []int{200}})
	deliveries := collectDeliveries(t, s, h)

	d := deliveries[kind.Data]
	require.Error(t, d.Err)
	assert.True(t, s.IsValidationError(d.Err), "status mismatch should be validation-only error")
	assert.Equal(t, []byte(`{"error": "not found"}`), d.Body, "body should still be delivered")
}

func TestService_Start_flags_non_JSON_body_under_JSON_kind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`plain text, not a JSON`))
	}))
	defer srv.Close()

	s := NewService(srv.Client())
	h := buildHandle(t, s, Request{Method: http.MethodGet, URL: srv.URL})
	deliveries := collectDeliveries(t, s, h)

	require.Error(t, deliveries[kind.JSON].Err)
	assert.False(t, s.IsValidationError(deliveries[kind.JSON].Err), "interpretation error is not validation-only")

	assert.NoError(t, deliveries[kind.String].Err)
	assert.NoError(t, deliveries[kind.Data].Err)
	assert.NoError(t, deliveries[kind.Empty].Err)
}

func TestService_Start_reports_unreachable_host(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	s := NewDefaultService()
	h := buildHandle(t, s, Request{Method: http.MethodGet, URL: srv.URL})
	deliveries := collectDeliveries(t, s, h)

	for _, k := range kind.All() {
		d := deliveries[k]
		assert.False(t, d.Received, "no HTTP exchange should be reported for kind %s", k)
		assert.Error(t, d.Err)
	}
}

func TestService_Cancel_aborts_exchange(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s := NewService(srv.Client())
	h := buildHandle(t, s, Request{Method: http.MethodGet, URL: srv.URL})

	ch := make(chan Delivery, len(kind.All()))
	s.Start(h, func(d Delivery) { ch <- d }, nil)

	time.Sleep(50 * time.Millisecond)
	s.Cancel(h)
	s.Cancel(h) // idempotent

	for i := 0; i < len(kind.All()); i++ {
		select {
		case d := <-ch:
			assert.False(t, d.Received)
			assert.Error(t, d.Err)
		case <-time.After(2 * time.Second):
			t.Fatalf("cancelled exchange should still produce deliveries")
		}
	}
}

func TestService_Build_reports_missing_multipart_file(t *testing.T) {
	s := NewDefaultService()

	failed := make(chan error, 1)
	s.Build(Request{
		Method:    http.MethodPost,
		URL:       "http://example.com/upload",
		Encoding:  EncodingMultipart,
		FileParts: []FilePart{{FieldName: "avatar", Path: "/definitely/not/here.png"}},
	}, func(h *Handle) { t.Error("build should not succeed") }, func(err error) { failed <- err })

	select {
	case err := <-failed:
		assert.ErrorIs(t, err, ErrEncoding)
	case <-time.After(time.Second):
		t.Fatal("build failure was not reported")
	}
}

func TestService_Build_encodes_multipart_form(t *testing.T) {
	tmpFile := path.Join(t.TempDir(), "avatar.png")
	require.NoError(t, os.WriteFile(tmpFile, []byte("fake image"), 0644))

	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, _, err := r.FormFile("avatar")
		require.NoError(t, err)
		content, _ := io.ReadAll(f)

		received <- r.FormValue("name") + "|" + string(content)
	}))
	defer srv.Close()

	s := NewService(srv.Client())
	h := buildHandle(t, s, Request{
		Method:    http.MethodPost,
		URL:       srv.URL,
		Params:    url.Values{"name": []string{"abc"}},
		Encoding:  EncodingMultipart,
		FileParts: []FilePart{{FieldName: "avatar", Path: tmpFile}},
	})
	collectDeliveries(t, s, h)

	select {
	case got := <-received:
		assert.Equal(t, "abc|fake image", got)
	case <-time.After(time.Second):
		t.Fatal("server did not receive multipart form")
	}
}

func TestService_Build_serializes_JSON_body(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r.Header.Get("Content-Type") + "|" + string(body)
	}))
	defer srv.Close()

	s := NewService(srv.Client())
	h := buildHandle(t, s, Request{
		Method:   http.MethodPost,
		URL:      srv.URL,
		Encoding: EncodingJSON,
		Body:     map[string]any{"name": "abc"},
	})
	collectDeliveries(t, s, h)

	select {
	case got := <-received:
		assert.Equal(t, `application/json|{"name":"abc"}`, got)
	case <-time.After(time.Second):
		t.Fatal("server did not receive request")
	}
}

func TestService_response_cache_memoizes_GET(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	s := NewService(srv.Client())
	s.EnableResponseCache(time.Minute)

	first := buildHandle(t, s, Request{Method: http.MethodGet, URL: srv.URL})
	collectDeliveries(t, s, first)

	second := buildHandle(t, s, Request{Method: http.MethodGet, URL: srv.URL})
	deliveries := collectDeliveries(t, s, second)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second GET should be served from cache")
	assert.Equal(t, []byte(`{"id": 1}`), deliveries[kind.Data].Body)
}

func TestService_debugger_receives_request_dump(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	var buff bytes.Buffer
	s := NewService(srv.Client())
	s.SetDebugger(debugger.New(true, false, math.MaxUint16, &buff))

	h := buildHandle(t, s, Request{Method: http.MethodGet, URL: srv.URL})
	collectDeliveries(t, s, h)

	dump := buff.String()
	assert.Contains(t, dump, "curl", "an activated debugger should receive the curl rendition of the request")
	assert.Contains(t, dump, srv.URL)
}

func TestService_Start_reports_progress(t *testing.T) {
	payload := make([]byte, 128*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	s := NewService(srv.Client())
	h := buildHandle(t, s, Request{Method: http.MethodGet, URL: srv.URL})

	var lastRead int64
	ch := make(chan Delivery, len(kind.All()))
	s.Start(h, func(d Delivery) { ch <- d }, func(p Progress) { atomic.StoreInt64(&lastRead, p.Read) })

	for i := 0; i < len(kind.All()); i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("missing deliveries")
		}
	}

	assert.Equal(t, int64(len(payload)), atomic.LoadInt64(&lastRead))
}
