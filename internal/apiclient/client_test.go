package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcheck/internal/credential"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	m := NewMetrics()
	c, err := New(Options{BaseURL: srv.URL + "/", Timeout: 2 * time.Second, Metrics: m})
	require.NoError(t, err)
	return c, m
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "localhost"})
	require.Error(t, err)
}

func TestCall_JSONRoundTrip(t *testing.T) {
	var gotBody map[string]any
	var gotCookie, gotContentType string
	c, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotContentType = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id": 42, "managerApprovalStatus": "PENDING"}`)
	}))

	resp, err := c.Call(context.Background(), Request{
		Method:     http.MethodPost,
		Endpoint:   "/api/tickets",
		Payload:    map[string]any{"title": "Printer on fire"},
		Credential: credential.Cookie("JSESSIONID=abc"),
		Actor:      "EMPLOYEE",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "JSESSIONID=abc", gotCookie)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Printer on fire", gotBody["title"])

	body, ok := resp.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("42"), body["id"])
	assert.Equal(t, "EMPLOYEE", resp.Record.Actor)
	assert.Equal(t, int64(1), resp.Record.Seq)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("POST", "/api/tickets", "ok")))
}

func TestCall_NoContent(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp, err := c.Call(context.Background(), Request{Method: http.MethodPatch, Endpoint: "/api/tickets/1/assign"})
	require.NoError(t, err)
	assert.True(t, resp.NoContent)
	assert.Nil(t, resp.Body)
}

func TestCall_HTTPErrorCarriesStatusAndBody(t *testing.T) {
	c, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"user 999 not found"}`)
	}))

	resp, err := c.Call(context.Background(), Request{
		Method:   http.MethodPatch,
		Endpoint: "/api/tickets/75/assign",
		Query:    url.Values{"userId": {"999"}},
	})
	require.Error(t, err)
	assert.False(t, IsUnreachable(err))

	herr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, herr.Status)
	assert.Contains(t, herr.Body, "user 999 not found")
	assert.Equal(t, "/api/tickets/75/assign?userId=999", herr.Endpoint)
	assert.NotEmpty(t, resp.Record.Err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("PATCH", "/api/tickets/:id/assign", "http_error")))
}

func TestCall_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c, err := New(Options{BaseURL: "http://" + addr, Timeout: time.Second})
	require.NoError(t, err)

	resp, err := c.Call(context.Background(), Request{Method: http.MethodGet, Endpoint: "/api/users"})
	require.Error(t, err)
	assert.True(t, IsUnreachable(err))
	_, isHTTP := AsHTTPError(err)
	assert.False(t, isHTTP)
	assert.Contains(t, resp.Record.Err, "service unreachable")
}

func TestCall_NonJSONBodyKeptAsText(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>Dashboard</html>")
	}))

	resp, err := c.Call(context.Background(), Request{Method: http.MethodGet, Endpoint: "/"})
	require.NoError(t, err)
	assert.Equal(t, "<html>Dashboard</html>", resp.Body)
}

func TestCall_RedirectIsNotFollowed(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))

	_, err := c.Call(context.Background(), Request{Method: http.MethodGet, Endpoint: "/api/tickets/1"})
	herr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusFound, herr.Status)
}

func TestLogin(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != "admin" || r.PostForm.Get("password") != "password" {
			http.Redirect(w, r, "/login?error", http.StatusFound)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "SESSION42", Path: "/"})
		http.Redirect(w, r, "/", http.StatusFound)
	}))

	cred, err := c.Login(context.Background(), "admin", "password", "")
	require.NoError(t, err)
	assert.Equal(t, credential.Cookie("JSESSIONID=SESSION42"), cred)

	_, err = c.Login(context.Background(), "admin", "wrong", "")
	herr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusFound, herr.Status)
}

func TestLogin_NoCookie(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	_, err := c.Login(context.Background(), "admin", "password", "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRoute(t *testing.T) {
	assert.Equal(t, "/api/tickets/:id/assign", Route("/api/tickets/75/assign?userId=3"))
	assert.Equal(t, "/api/users", Route("/api/users"))
	assert.Equal(t, "/auth/me", Route("/auth/me"))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.Observe("GET", "/api/tickets/7", "ok", 10*time.Millisecond)

	path := filepath.Join(t.TempDir(), "tickcheck.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tickcheck_api_calls_total{method="GET",outcome="ok",route="/api/tickets/:id"} 1`)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 512))
	assert.Equal(t, "é...", truncate("ééé", 3))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}

func TestHTTPError_LongMultibyteBody(t *testing.T) {
	err := &HTTPError{Method: "POST", Endpoint: "/api/kb", Status: 400, Body: "x" + strings.Repeat("ü", 600)}

	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestCall_CancelledIsCountedSeparately(t *testing.T) {
	c, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, Request{Method: http.MethodGet, Endpoint: "/api/tickets/75"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("GET", "/api/tickets/:id", "cancelled")))
	assert.Zero(t, testutil.ToFloat64(m.calls.WithLabelValues("GET", "/api/tickets/:id", "unreachable")))
}
