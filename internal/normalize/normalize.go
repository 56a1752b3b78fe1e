// Package normalize converts heterogeneous REST option payloads into a
// uniform item shape. Backends disagree on how they spell identifiers: some
// return objects with an "id", some prefix the field with the resource name,
// some nest it inside a pivot struct, and some return bare scalars. All ids
// are normalised to strings before they reach the selection engine.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Context carries identifiers tied to one option payload.
type Context struct {
	// Level is the level name, used to resolve "<level>_id" style fields.
	Level string
	// ParentKey identifies the parent selection the payload was fetched for.
	ParentKey string
}

// Item is one normalised option entry.
type Item struct {
	ID    string
	Label string
	Extra map[string]any
}

// Envelope is the REST response wrapper used by the option endpoints.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// ParseEnvelope unwraps an envelope body. A response with success=false is an
// error carrying the backend message; HTTP status alone is not trusted.
func ParseEnvelope(body []byte) (json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("normalize: decode envelope: %w", err)
	}
	if !env.Success {
		message := env.Message
		if message == "" {
			message = "request failed"
		}
		return nil, fmt.Errorf("normalize: %s", message)
	}
	return env.Data, nil
}

// PreHook lets callers mutate or normalise a payload object before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate an item after decoding.
type PostHook func(Context, *Item) error

// DecoderOption configures a Decoder instance.
type DecoderOption func(*Decoder)

// Decoder converts envelope data arrays into items.
type Decoder struct {
	preHooks    []PreHook
	postHooks   []PostHook
	idFields    []string
	labelFields []string
}

// WithPreHook applies hook prior to decoding each object entry.
func WithPreHook(hook PreHook) DecoderOption {
	return func(d *Decoder) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after each item is decoded.
func WithPostHook(hook PostHook) DecoderOption {
	return func(d *Decoder) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithIDFields overrides the field names probed for an identifier, tried in
// order before the built-in "id"/"<level>_id"/pivot strategies.
func WithIDFields(fields ...string) DecoderOption {
	return func(d *Decoder) {
		d.idFields = append(d.idFields, fields...)
	}
}

// WithLabelFields overrides the field names probed for a display label.
func WithLabelFields(fields ...string) DecoderOption {
	return func(d *Decoder) {
		d.labelFields = append([]string(nil), fields...)
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		labelFields: []string{"label", "name", "title"},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Items decodes an envelope data payload into items. The payload may be an
// array of objects, an array of bare scalar ids, or a single object.
func (d *Decoder) Items(ctx Context, data json.RawMessage) ([]Item, error) {
	if len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("normalize: decode data for level %q: %w", ctx.Level, err)
	}

	entries, ok := raw.([]any)
	if !ok {
		entries = []any{raw}
	}

	items := make([]Item, 0, len(entries))
	for i, entry := range entries {
		item, err := d.item(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("normalize: entry %d for level %q: %w", i, ctx.Level, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (d *Decoder) item(ctx Context, entry any) (Item, error) {
	if id, ok := IDString(entry); ok {
		item := Item{ID: id, Label: id}
		return d.applyPostHooks(ctx, item)
	}

	object, ok := entry.(map[string]any)
	if !ok {
		return Item{}, fmt.Errorf("unsupported entry type %T", entry)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, object)
		if err != nil {
			return Item{}, fmt.Errorf("pre-hook: %w", err)
		}
		if next != nil {
			object = next
		}
	}

	id, idField, ok := d.extractID(ctx, object)
	if !ok {
		return Item{}, fmt.Errorf("no identifier field found")
	}

	item := Item{ID: id}
	labelField := ""
	for _, field := range d.labelFields {
		if value, exists := object[field]; exists {
			if label, isString := value.(string); isString && label != "" {
				item.Label = label
				labelField = field
				break
			}
		}
	}
	if item.Label == "" {
		item.Label = id
	}

	for key, value := range object {
		if key == idField || key == labelField || key == "pivot" {
			continue
		}
		if item.Extra == nil {
			item.Extra = map[string]any{}
		}
		item.Extra[key] = plain(value)
	}

	return d.applyPostHooks(ctx, item)
}

func (d *Decoder) applyPostHooks(ctx Context, item Item) (Item, error) {
	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &item); err != nil {
			return Item{}, fmt.Errorf("post-hook: %w", err)
		}
	}
	return item, nil
}

// extractID probes the object for an identifier. Strategies, in order:
// configured fields, "id", "<level>_id", then the same two inside a nested
// pivot struct.
func (d *Decoder) extractID(ctx Context, object map[string]any) (string, string, bool) {
	candidates := append([]string(nil), d.idFields...)
	candidates = append(candidates, "id")
	if ctx.Level != "" {
		candidates = append(candidates, ctx.Level+"_id")
	}

	for _, field := range candidates {
		if value, exists := object[field]; exists {
			if id, ok := IDString(value); ok {
				return id, field, true
			}
		}
	}

	if pivot, exists := object["pivot"].(map[string]any); exists {
		for _, field := range candidates {
			if value, ok := pivot[field]; ok {
				if id, valid := IDString(value); valid {
					return id, "", true
				}
			}
		}
	}

	return "", "", false
}

// IDString normalises a scalar identifier to its string form. Integral floats
// and json.Number values render without a decimal point.
func IDString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

// ExtractIDs is a convenience wrapper that decodes a payload and returns the
// normalised ids only.
func ExtractIDs(level string, data json.RawMessage) ([]string, error) {
	items, err := NewDecoder().Items(Context{Level: level}, data)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids, nil
}

func plain(value any) any {
	if number, ok := value.(json.Number); ok {
		if i, err := number.Int64(); err == nil {
			return i
		}
		if f, err := number.Float64(); err == nil {
			return f
		}
		return number.String()
	}
	return value
}
