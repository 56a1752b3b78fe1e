package cascade

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPLoaderRootLevel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/countries" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("parent") != "" {
			t.Errorf("root fetch must not carry a parent parameter")
		}
		fmt.Fprint(w, `{"success":true,"data":[{"id":"CA","name":"Canada"},{"id":"US","name":"United States"}]}`)
	}))
	defer server.Close()

	loader := NewHTTPLoader(server.URL, map[string]string{"country": "countries"})
	options, err := loader.LoadOptions(context.Background(), LoadRequest{Level: 0, LevelName: "country"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(options) != 2 || options[0].ID != "CA" || options[0].Label != "Canada" {
		t.Fatalf("unexpected options: %v", options)
	}
}

func TestHTTPLoaderParentTokenSubstitution(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/facilities/12/get-unit-types" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"success":true,"data":[{"id":3,"name":"Locker"}]}`)
	}))
	defer server.Close()

	loader := NewHTTPLoader(server.URL, map[string]string{"unitType": "facilities/{parent}/get-unit-types"})
	options, err := loader.LoadOptions(context.Background(), LoadRequest{
		Level:     2,
		LevelName: "unitType",
		ParentKey: "12",
		ParentIDs: []string{"12"},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(options) != 1 || options[0].ID != "3" || options[0].ParentKey != "12" {
		t.Fatalf("unexpected options: %v", options)
	}
}

func TestHTTPLoaderParentQueryFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("parent"); got != "CA" {
			t.Errorf("expected parent query CA, got %q", got)
		}
		fmt.Fprint(w, `{"success":true,"data":[{"id":12,"name":"Toronto"}]}`)
	}))
	defer server.Close()

	loader := NewHTTPLoader(server.URL, map[string]string{"facility": "facilities"})
	options, err := loader.LoadOptions(context.Background(), LoadRequest{
		Level:     1,
		LevelName: "facility",
		ParentKey: "CA",
		ParentIDs: []string{"CA"},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(options) != 1 || options[0].ID != "12" {
		t.Fatalf("unexpected options: %v", options)
	}
}

func TestHTTPLoaderFanOutUnion(t *testing.T) {
	replies := map[string]string{
		"CA": `{"success":true,"data":[{"id":1,"name":"Toronto"},{"id":2,"name":"Shared"}]}`,
		"US": `{"success":true,"data":[{"id":2,"name":"Shared"},{"id":3,"name":"Austin"}]}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parent := strings.TrimPrefix(r.URL.Path, "/countries/")
		parent = strings.TrimSuffix(parent, "/facilities")
		fmt.Fprint(w, replies[parent])
	}))
	defer server.Close()

	loader := NewHTTPLoader(server.URL, map[string]string{"facility": "countries/{parent}/facilities"})
	options, err := loader.LoadOptions(context.Background(), LoadRequest{
		Level:     1,
		LevelName: "facility",
		ParentKey: "CA,US",
		ParentIDs: []string{"CA", "US"},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(options) != 3 {
		t.Fatalf("expected de-duplicated union of 3, got %v", options)
	}
	want := []string{"1", "2", "3"}
	for i, opt := range options {
		if opt.ID != want[i] {
			t.Fatalf("expected ids %v, got %v", want, options)
		}
	}
	// The shared option keeps the first parent that produced it.
	if options[1].ParentKey != "CA" {
		t.Fatalf("expected first-seen parent kept, got %q", options[1].ParentKey)
	}
}

func TestHTTPLoaderEnvelopeFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":false,"message":"facility not found"}`)
	}))
	defer server.Close()

	loader := NewHTTPLoader(server.URL, map[string]string{"facility": "facilities"})
	_, err := loader.LoadOptions(context.Background(), LoadRequest{LevelName: "facility"})
	if err == nil || !strings.Contains(err.Error(), "facility not found") {
		t.Fatalf("expected envelope failure message, got %v", err)
	}
}

func TestHTTPLoaderRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	loader := NewHTTPLoader(server.URL, map[string]string{"country": "countries"})
	_, err := loader.LoadOptions(context.Background(), LoadRequest{LevelName: "country"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestHTTPLoaderUnknownLevel(t *testing.T) {
	loader := NewHTTPLoader("http://example.invalid", map[string]string{})
	_, err := loader.LoadOptions(context.Background(), LoadRequest{LevelName: "facility"})
	if err == nil || !strings.Contains(err.Error(), "no endpoint registered") {
		t.Fatalf("expected unknown level error, got %v", err)
	}
}

func TestHTTPLoaderSendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("expected auth header, got %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("expected json accept header, got %q", got)
		}
		fmt.Fprint(w, `{"success":true,"data":[]}`)
	}))
	defer server.Close()

	loader := NewHTTPLoader(server.URL, map[string]string{"country": "countries"},
		HTTPWithHeader("Authorization", "Bearer token"))
	if _, err := loader.LoadOptions(context.Background(), LoadRequest{LevelName: "country"}); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestHTTPLoaderNormalisesHeterogeneousIDs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":[{"facility_id":7,"name":"East"},{"name":"West","pivot":{"facility_id":3}}]}`)
	}))
	defer server.Close()

	loader := NewHTTPLoader(server.URL, map[string]string{"facility": "facilities"})
	options, err := loader.LoadOptions(context.Background(), LoadRequest{LevelName: "facility"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(options) != 2 || options[0].ID != "7" || options[1].ID != "3" {
		t.Fatalf("expected normalised ids, got %v", options)
	}
}
