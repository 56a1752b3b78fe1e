package cascade

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-cascade/internal/normalize"
	"github.com/goliatone/go-cascade/parents"
)

// WithHTTPClient sets the HTTP client used when a loader is built from chain
// configuration.
func WithHTTPClient(client *http.Client) ChainOption {
	return func(cfg *chainConfig) {
		cfg.httpClient = client
	}
}

// HTTPLoaderOption configures an HTTPLoader instance.
type HTTPLoaderOption func(*HTTPLoader)

// HTTPWithClient overrides the HTTP client used for option fetches.
func HTTPWithClient(client *http.Client) HTTPLoaderOption {
	return func(l *HTTPLoader) {
		if client != nil {
			l.client = client
		}
	}
}

// HTTPWithHeader adds a header to every option request, e.g. authorization.
func HTTPWithHeader(key, value string) HTTPLoaderOption {
	return func(l *HTTPLoader) {
		l.headers.Add(key, value)
	}
}

// HTTPWithDecoder overrides the payload decoder, letting callers install
// pre/post hooks or custom id fields for awkward backends.
func HTTPWithDecoder(decoder *normalize.Decoder) HTTPLoaderOption {
	return func(l *HTTPLoader) {
		if decoder != nil {
			l.decoder = decoder
		}
	}
}

// HTTPLoader fetches level options from REST endpoints wrapped in the
// {success,data,message} envelope. Endpoint paths are registered per level
// name; a "{parent}" token in the path is substituted with each selected
// parent id, otherwise the parent id is appended as a ?parent= query
// parameter. Multi-parent selections fan out into one request per parent and
// the results are unioned, de-duplicated by option id in parent order.
type HTTPLoader struct {
	baseURL   string
	endpoints map[string]string
	client    *http.Client
	decoder   *normalize.Decoder
	headers   http.Header
}

// NewHTTPLoader constructs a loader rooted at baseURL with per-level endpoint
// path templates keyed by level name.
func NewHTTPLoader(baseURL string, endpoints map[string]string, opts ...HTTPLoaderOption) *HTTPLoader {
	l := &HTTPLoader{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: map[string]string{},
		client:    http.DefaultClient,
		decoder:   normalize.NewDecoder(),
		headers:   http.Header{},
	}
	for name, path := range endpoints {
		l.endpoints[name] = path
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// LoadOptions implements Loader.
func (l *HTTPLoader) LoadOptions(ctx context.Context, req LoadRequest) ([]Option, error) {
	template, ok := l.endpoints[req.LevelName]
	if !ok {
		return nil, fmt.Errorf("cascade: no endpoint registered for level %q", req.LevelName)
	}

	if len(req.ParentIDs) == 0 {
		return l.fetch(ctx, req, template, "")
	}

	lists := make([][]Option, 0, len(req.ParentIDs))
	for _, parentID := range req.ParentIDs {
		options, err := l.fetch(ctx, req, template, parentID)
		if err != nil {
			return nil, err
		}
		lists = append(lists, options)
	}
	return parents.Union(func(opt Option) string { return opt.ID }, lists...), nil
}

func (l *HTTPLoader) fetch(ctx context.Context, req LoadRequest, template, parentID string) ([]Option, error) {
	endpoint, err := l.endpointURL(template, parentID)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cascade: build request for level %q: %w", req.LevelName, err)
	}
	for key, values := range l.headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("cascade: fetch level %q: %w", req.LevelName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("cascade: read level %q response: %w", req.LevelName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cascade: fetch level %q: unexpected status %d", req.LevelName, resp.StatusCode)
	}

	data, err := normalize.ParseEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("cascade: level %q: %w", req.LevelName, err)
	}

	items, err := l.decoder.Items(normalize.Context{Level: req.LevelName, ParentKey: parentID}, data)
	if err != nil {
		return nil, fmt.Errorf("cascade: level %q: %w", req.LevelName, err)
	}

	options := make([]Option, len(items))
	for i, item := range items {
		options[i] = Option{
			ID:        item.ID,
			Label:     item.Label,
			ParentKey: parentID,
			Metadata:  item.Extra,
		}
	}
	return options, nil
}

func (l *HTTPLoader) endpointURL(template, parentID string) (string, error) {
	path := template
	appendQuery := false
	if strings.Contains(path, "{parent}") {
		path = strings.ReplaceAll(path, "{parent}", url.PathEscape(parentID))
	} else if parentID != "" {
		appendQuery = true
	}

	endpoint := path
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = l.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("cascade: invalid endpoint %q: %w", template, err)
	}
	if appendQuery {
		query := parsed.Query()
		query.Set("parent", parentID)
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}
