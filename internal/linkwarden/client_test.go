package linkwarden

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCollections(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/collections" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer lw-token" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"response":[{"id":7,"name":"osint"},{"id":8,"name":"recon"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "lw-token")
	got, err := c.Collections(context.Background())
	if err != nil {
		t.Fatalf("Collections error: %v", err)
	}
	want := []Collection{{ID: 7, Name: "osint"}, {ID: 8, Name: "recon"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("collections mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateCollection(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/collections" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["name"] != "misc" {
			t.Errorf("unexpected body: %v (err %v)", body, err)
		}
		_, _ = w.Write([]byte(`{"response":{"id":42,"name":"misc"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	coll, err := c.CreateCollection(context.Background(), "misc")
	if err != nil {
		t.Fatalf("CreateCollection error: %v", err)
	}
	if coll.ID != 42 || coll.Name != "misc" {
		t.Fatalf("unexpected collection: %+v", coll)
	}
}

func TestCreateLinkPayload(t *testing.T) {
	t.Parallel()
	var got Link
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/links" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	link := Link{
		URL:        "https://example.com/writeup",
		Collection: Collection{ID: 7, Name: "osint"},
		Tags:       []Tag{{Name: "osint"}},
	}
	if err := c.CreateLink(context.Background(), link); err != nil {
		t.Fatalf("CreateLink error: %v", err)
	}
	if diff := cmp.Diff(link, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorStatusSurfaces(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad")
	_, err := c.Collections(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("Status = %d, want 401", apiErr.Status)
	}
	if apiErr.Transient() {
		t.Fatal("401 should not be transient")
	}
}

func TestAPIErrorTransient(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tc := range cases {
		e := &APIError{Status: tc.status}
		if got := e.Transient(); got != tc.want {
			t.Errorf("Transient() for %d = %v, want %v", tc.status, got, tc.want)
		}
	}
}
