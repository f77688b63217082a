package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// GatewayProvider fetches content over HTTP from "<baseURL><locator>".
type GatewayProvider struct {
	id       string
	baseURL  string
	token    string
	client   *http.Client
	maxBytes int64
}

// GatewayOption configures a GatewayProvider.
type GatewayOption func(*GatewayProvider)

// WithBearerToken authenticates requests.
func WithBearerToken(token string) GatewayOption {
	return func(g *GatewayProvider) {
		g.token = token
	}
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) GatewayOption {
	return func(g *GatewayProvider) {
		g.maxBytes = n
	}
}

// WithID overrides the provider id, which defaults to the gateway host.
func WithID(id string) GatewayOption {
	return func(g *GatewayProvider) {
		g.id = id
	}
}

// NewGatewayProvider builds a gateway provider. baseURL must end where the
// locator begins, e.g. "https://ipfs.io/ipfs/".
func NewGatewayProvider(baseURL string, client *http.Client, opts ...GatewayOption) (*GatewayProvider, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway URL %q", baseURL)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if client == nil {
		client = http.DefaultClient
	}
	g := &GatewayProvider{
		id:       u.Host,
		baseURL:  baseURL,
		client:   client,
		maxBytes: 20 << 20,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// ID returns the provider id.
func (g *GatewayProvider) ID() string {
	return g.id
}

// Fetch performs one GET. Retrying is the resolver's job.
func (g *GatewayProvider) Fetch(ctx context.Context, locator string) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+locator, nil)
	if err != nil {
		return nil, NewProviderError(ErrorInternal, g.id, "build request", err)
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, transportError(g.id, err)
	}
	defer resp.Body.Close()

	if perr := statusError(g.id, resp.StatusCode); perr != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, perr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBytes+1))
	if err != nil {
		return nil, transportError(g.id, err)
	}
	if int64(len(body)) > g.maxBytes {
		return nil, NewProviderError(ErrorBadData, g.id, fmt.Sprintf("content exceeds %d bytes", g.maxBytes), nil)
	}
	return &Payload{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
}

// PinataMetadata reads pin key-values from the Pinata pin list API.
type PinataMetadata struct {
	apiURL string
	token  string
	client *http.Client
}

// NewPinataMetadata builds a metadata provider for apiURL (e.g. https://api.pinata.cloud).
func NewPinataMetadata(apiURL, token string, client *http.Client) *PinataMetadata {
	if client == nil {
		client = http.DefaultClient
	}
	return &PinataMetadata{apiURL: strings.TrimRight(apiURL, "/"), token: token, client: client}
}

// ID returns the provider id.
func (p *PinataMetadata) ID() string {
	return "pinata-metadata"
}

type pinListResponse struct {
	Rows []struct {
		Metadata struct {
			Name      string         `json:"name"`
			KeyValues map[string]any `json:"keyvalues"`
		} `json:"metadata"`
	} `json:"rows"`
}

// FetchMetadata returns the first pinned row's key-values as strings.
func (p *PinataMetadata) FetchMetadata(ctx context.Context, locator string) (map[string]string, error) {
	q := url.Values{}
	q.Set("cid", locator)
	q.Set("status", "pinned")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/data/pinList?"+q.Encode(), nil)
	if err != nil {
		return nil, NewProviderError(ErrorInternal, p.ID(), "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, transportError(p.ID(), err)
	}
	defer resp.Body.Close()
	if perr := statusError(p.ID(), resp.StatusCode); perr != nil {
		return nil, perr
	}

	var out pinListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, NewProviderError(ErrorBadData, p.ID(), "decode pin list", err)
	}
	meta := map[string]string{}
	if len(out.Rows) == 0 {
		return meta, nil
	}
	for k, v := range out.Rows[0].Metadata.KeyValues {
		switch tv := v.(type) {
		case string:
			meta[k] = tv
		case nil:
		default:
			meta[k] = fmt.Sprint(tv)
		}
	}
	return meta, nil
}

func statusError(providerID string, status int) *ProviderError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return NewProviderError(ErrorNotFound, providerID, "content not found", nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewProviderError(ErrorAuthentication, providerID, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusTooManyRequests:
		return NewProviderError(ErrorRateLimited, providerID, "rate limited", nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewProviderError(ErrorTimeout, providerID, fmt.Sprintf("status %d", status), nil)
	case status >= 500:
		return NewProviderError(ErrorProviderOutage, providerID, fmt.Sprintf("status %d", status), nil)
	default:
		return NewProviderError(ErrorBadData, providerID, fmt.Sprintf("unexpected status %d", status), nil)
	}
}

func transportError(providerID string, err error) *ProviderError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewProviderError(ErrorTimeout, providerID, "request timed out", err)
	}
	return NewProviderError(ErrorProviderOutage, providerID, "request failed", err)
}
