package figma

import (
	"comparison-controller/internal/errs"
	"comparison-controller/internal/retry"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/xerrors"
)

const DefaultBaseURL = "https://api.figma.com"

type Config struct {
	Token   string
	BaseURL string
	// HTTPClient defaults to a traced client retrying on gateway errors,
	// throttling and dropped connections.
	HTTPClient *http.Client
	Cache      Cache
	CacheTTL   time.Duration
	Log        logr.Logger
}

type Client struct {
	token      string
	baseURL    *url.URL
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration
	log        logr.Logger
}

func NewClient(c Config) (*Client, error) {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse base URL %s: %w", c.BaseURL, err)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}

	return &Client{
		token:      c.Token,
		baseURL:    baseURL,
		httpClient: httpClient,
		cache:      c.Cache,
		cacheTTL:   c.CacheTTL,
		log:        c.Log,
	}, nil
}

func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 2 * time.Minute,
		Transport: &retry.Transport{
			Base:          otelhttp.NewTransport(http.DefaultTransport),
			RetryStrategy: retry.NewExponentialBackOff(500*time.Millisecond, 10*time.Second, 4, nil),
			RetryOn:       retry.NewDefaultRetryOn(),
			MaxRetryAfter: 30 * time.Second,
		},
	}
}

type imagesResponse struct {
	Err    *string            `json:"err"`
	Images map[string]*string `json:"images"`
}

// ExportNode renders a node as PNG through the images endpoint and downloads
// the result.
func (c *Client) ExportNode(ctx context.Context, fileKey string, nodeID string) ([]byte, error) {
	source := fileKey + "/" + nodeID
	if c.token == "" {
		return nil, errs.New(errs.ErrAuthenticationFailed, source, xerrors.New("no access token configured"))
	}

	key := cacheKey(fileKey, nodeID)
	if c.cache != nil {
		data, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Error(err, "failed to read export cache", "key", key)
		} else if ok {
			c.log.V(1).Info("export cache hit", "key", key)
			return data, nil
		}
	}

	imageURL, err := c.imageURL(ctx, fileKey, nodeID)
	if err != nil {
		return nil, errs.WithSource(err, source)
	}

	data, err := c.download(ctx, imageURL)
	if err != nil {
		return nil, errs.WithSource(err, source)
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
			c.log.Error(err, "failed to write export cache", "key", key)
		}
	}

	return data, nil
}

func (c *Client) imageURL(ctx context.Context, fileKey string, nodeID string) (string, error) {
	endpoint := c.baseURL.JoinPath("v1", "images", fileKey)
	endpoint.RawQuery = url.Values{
		"ids":    []string{nodeID},
		"format": []string{"png"},
	}.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", xerrors.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("X-Figma-Token", c.token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", errs.New(errs.ErrExportUnavailable, "", xerrors.Errorf("failed to request export: %w", err))
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", errs.New(errs.ErrExportUnavailable, "", xerrors.Errorf("failed to read export response: %w", err))
	}

	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return "", errs.New(errs.ErrAuthenticationFailed, "", statusError(response.StatusCode, body))
	case response.StatusCode < 200 || response.StatusCode >= 300:
		return "", errs.New(errs.ErrExportUnavailable, "", statusError(response.StatusCode, body))
	}

	var images imagesResponse
	if err := json.Unmarshal(body, &images); err != nil {
		return "", errs.New(errs.ErrEncoding, "", xerrors.Errorf("failed to decode export response: %w", err))
	}
	if images.Err != nil && *images.Err != "" {
		return "", errs.New(errs.ErrExportUnavailable, "", xerrors.New(*images.Err))
	}

	imageURL := pickImage(images.Images, nodeID)
	if imageURL == "" {
		return "", errs.New(errs.ErrExportUnavailable, "", xerrors.Errorf("node %s was not rendered", nodeID))
	}
	return imageURL, nil
}

// pickImage prefers the requested node and falls back to the first rendered
// image, as the endpoint may echo the id in the dashed form.
func pickImage(images map[string]*string, nodeID string) string {
	for _, id := range []string{nodeID, strings.Replace(nodeID, ":", "-", 1)} {
		if u, ok := images[id]; ok && u != nil && *u != "" {
			return *u
		}
	}

	ids := make([]string, 0, len(images))
	for id := range images {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if u := images[id]; u != nil && *u != "" {
			return *u
		}
	}
	return ""
}

func (c *Client) download(ctx context.Context, imageURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrExportUnavailable, "", xerrors.Errorf("failed to create download request: %w", err))
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, errs.New(errs.ErrExportUnavailable, "", xerrors.Errorf("failed to download export: %w", err))
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errs.New(errs.ErrExportUnavailable, "", xerrors.Errorf("failed to read export: %w", err))
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, errs.New(errs.ErrExportUnavailable, "", statusError(response.StatusCode, body))
	}
	if len(body) == 0 {
		return nil, errs.New(errs.ErrEncoding, "", xerrors.New("export is empty"))
	}

	return body, nil
}

func statusError(statusCode int, body []byte) error {
	const limit = 256
	message := strings.TrimSpace(string(body))
	if len(message) > limit {
		message = message[:limit] + "..."
	}
	return xerrors.Errorf("unexpected status %d: %s", statusCode, message)
}
