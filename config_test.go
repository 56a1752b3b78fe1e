package cascade

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const quoteConfigYAML = `
base_url: %s
levels:
  - name: country
    label: Country
    endpoint: countries
  - name: facility
    label: Facility
    param: facility
    endpoint: countries/{parent}/facilities
  - name: unitType
    label: Unit Type
    mode: single
    param: unitType
    endpoint: facilities/{parent}/get-unit-types
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(fmt.Sprintf(quoteConfigYAML, "https://api.example.com")))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.BaseURL != "https://api.example.com" {
		t.Fatalf("unexpected base url %q", cfg.BaseURL)
	}
	levels := cfg.LevelDefs()
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if levels[1].Name != "facility" || levels[1].Label != "Facility" || levels[1].Param != "facility" {
		t.Fatalf("unexpected facility level: %+v", levels[1])
	}
	if levels[1].Mode != SingleSelect {
		t.Fatalf("expected single-select default, got %v", levels[1].Mode)
	}
	endpoints := cfg.Endpoints()
	if endpoints["unitType"] != "facilities/{parent}/get-unit-types" {
		t.Fatalf("unexpected endpoints: %v", endpoints)
	}
}

func TestParseConfigMultiMode(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
levels:
  - name: country
    mode: multi
  - name: facility
    mode: multi
    filter: active
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	levels := cfg.LevelDefs()
	if levels[0].Mode != MultiSelect || levels[1].Mode != MultiSelect {
		t.Fatalf("expected multi-select levels, got %+v", levels)
	}
	if levels[1].FilterRule != "active" {
		t.Fatalf("expected filter rule carried, got %+v", levels[1])
	}
}

func TestParseConfigRejectsEmpty(t *testing.T) {
	if _, err := ParseConfig([]byte("levels: []")); !errors.Is(err, ErrNoLevels) {
		t.Fatalf("expected ErrNoLevels, got %v", err)
	}
	if _, err := ParseConfig([]byte(":::")); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestNewFromConfigEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/countries", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":[{"id":"CA","name":"Canada"}]}`)
	})
	mux.HandleFunc("/countries/CA/facilities", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":[{"id":12,"name":"Toronto"}]}`)
	})
	mux.HandleFunc("/facilities/12/get-unit-types", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":[{"id":3,"name":"Locker"}]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	chain, err := NewFromConfig(
		[]byte(fmt.Sprintf(quoteConfigYAML, server.URL)),
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("new from config: %v", err)
	}

	ctx := context.Background()
	if err := chain.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := chain.WaitIdle(ctx); err != nil {
		t.Fatalf("wait idle: %v", err)
	}

	mustSelect(t, chain, 0, "CA")
	mustSelect(t, chain, 1, "12")

	options := chain.OptionsAt(2)
	if len(options) != 1 || options[0].ID != "3" || options[0].Label != "Locker" {
		t.Fatalf("unexpected unit type options: %v", options)
	}
}

func TestNewFromConfigHonoursExplicitLoader(t *testing.T) {
	chain, err := NewFromConfig(
		[]byte("levels:\n  - name: country\n"),
		WithLoader(NewStaticLoader(quoteCatalogue())),
	)
	if err != nil {
		t.Fatalf("new from config: %v", err)
	}
	ctx := context.Background()
	if err := chain.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := chain.WaitIdle(ctx); err != nil {
		t.Fatalf("wait idle: %v", err)
	}
	if got := chain.OptionsAt(0); len(got) != 2 {
		t.Fatalf("expected static catalogue options, got %v", got)
	}
}
