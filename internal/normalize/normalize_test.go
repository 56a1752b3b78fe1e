package normalize

import (
	"encoding/json"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{
			name: "success unwraps data",
			body: `{"success":true,"data":[{"id":1}]}`,
			want: `[{"id":1}]`,
		},
		{
			name:    "failure surfaces message",
			body:    `{"success":false,"message":"facility not found"}`,
			wantErr: true,
		},
		{
			name:    "failure without message",
			body:    `{"success":false}`,
			wantErr: true,
		},
		{
			name:    "malformed body",
			body:    `{"success":`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ParseEnvelope([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got data %s", data)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("expected %s got %s", tt.want, data)
			}
		})
	}
}

func TestItemsIDStrategies(t *testing.T) {
	tests := []struct {
		name  string
		level string
		data  string
		want  []string
	}{
		{
			name: "direct id",
			data: `[{"id":12,"name":"Downtown"},{"id":44,"name":"Airport"}]`,
			want: []string{"12", "44"},
		},
		{
			name:  "prefixed id",
			level: "facility",
			data:  `[{"facility_id":7,"name":"East"}]`,
			want:  []string{"7"},
		},
		{
			name:  "pivot id",
			level: "facility",
			data:  `[{"name":"West","pivot":{"facility_id":3,"user_id":9}}]`,
			want:  []string{"3"},
		},
		{
			name: "bare scalars",
			data: `[1,2,"x7"]`,
			want: []string{"1", "2", "x7"},
		},
		{
			name: "string ids preserved",
			data: `[{"id":"CA","name":"Canada"}]`,
			want: []string{"CA"},
		},
		{
			name: "single object payload",
			data: `{"id":5,"name":"Solo"}`,
			want: []string{"5"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := ExtractIDs(tt.level, json.RawMessage(tt.data))
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("expected %v got %v", tt.want, ids)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("expected %v got %v", tt.want, ids)
				}
			}
		})
	}
}

func TestItemsLabelAndExtra(t *testing.T) {
	decoder := NewDecoder()
	items, err := decoder.Items(Context{Level: "unitType"}, json.RawMessage(
		`[{"id":3,"name":"Climate Controlled","floor":2,"pivot":{"unitType_id":3}}]`,
	))
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item got %d", len(items))
	}
	item := items[0]
	if item.ID != "3" {
		t.Fatalf("expected id 3 got %q", item.ID)
	}
	if item.Label != "Climate Controlled" {
		t.Fatalf("expected name used as label got %q", item.Label)
	}
	if item.Extra["floor"] != int64(2) {
		t.Fatalf("expected floor extra got %v", item.Extra["floor"])
	}
	if _, exists := item.Extra["pivot"]; exists {
		t.Fatalf("pivot struct should not leak into extra")
	}
}

func TestItemsLabelFallsBackToID(t *testing.T) {
	items, err := NewDecoder().Items(Context{}, json.RawMessage(`[{"id":9}]`))
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if items[0].Label != "9" {
		t.Fatalf("expected label fallback to id got %q", items[0].Label)
	}
}

func TestItemsMissingIdentifier(t *testing.T) {
	_, err := NewDecoder().Items(Context{Level: "size"}, json.RawMessage(`[{"name":"10x10"}]`))
	if err == nil {
		t.Fatalf("expected error for entry without identifier")
	}
}

func TestItemsHooks(t *testing.T) {
	decoder := NewDecoder(
		WithPreHook(func(_ Context, object map[string]any) (map[string]any, error) {
			object["id"] = object["code"]
			return object, nil
		}),
		WithPostHook(func(ctx Context, item *Item) error {
			item.Label = ctx.Level + ":" + item.Label
			return nil
		}),
	)

	items, err := decoder.Items(Context{Level: "country"}, json.RawMessage(`[{"code":"CA","name":"Canada"}]`))
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if items[0].ID != "CA" {
		t.Fatalf("expected pre-hook id got %q", items[0].ID)
	}
	if items[0].Label != "country:Canada" {
		t.Fatalf("expected post-hook label got %q", items[0].Label)
	}
}

func TestItemsNullAndEmpty(t *testing.T) {
	if items, err := NewDecoder().Items(Context{}, nil); err != nil || items != nil {
		t.Fatalf("expected nil items for empty payload, got %v %v", items, err)
	}
	if items, err := NewDecoder().Items(Context{}, json.RawMessage(`null`)); err != nil || items != nil {
		t.Fatalf("expected nil items for null payload, got %v %v", items, err)
	}
}

func TestIDString(t *testing.T) {
	if id, ok := IDString(json.Number("42")); !ok || id != "42" {
		t.Fatalf("expected json.Number normalised, got %q %v", id, ok)
	}
	if id, ok := IDString(float64(7)); !ok || id != "7" {
		t.Fatalf("expected integral float normalised, got %q %v", id, ok)
	}
	if _, ok := IDString(true); ok {
		t.Fatalf("expected bool rejected")
	}
	if _, ok := IDString(""); ok {
		t.Fatalf("expected empty string rejected")
	}
}
