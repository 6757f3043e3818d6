package draftable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/namelens/draftprune/internal/core"
	"github.com/namelens/draftprune/internal/core/engine"
	apperrors "github.com/namelens/draftprune/internal/errors"
)

const (
	// DefaultBaseURL is the Draftable API root.
	DefaultBaseURL = "https://api.draftable.com/v1"

	// PlaceholderAPIKey is used when no key is configured.
	PlaceholderAPIKey = "YOUR_DRAFTABLE_API_KEY"

	comparisonsPath = "comparisons"
	maxBodyExcerpt  = 2048
)

// Client talks to the comparisons collection of the Draftable API.
type Client struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	HTTP      *http.Client
	Limiter   engine.Limiter
	Timeout   time.Duration
}

// New builds a client whose HTTP calls are gated by limiter.
func New(baseURL, apiKey string, limiter engine.Limiter, timeout time.Duration) *Client {
	c := &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Limiter: limiter,
		Timeout: timeout,
	}
	c.HTTP = NewHTTPClient(&http.Client{Timeout: c.timeout()}, limiter)
	return c
}

// ListComparisons fetches one page. Any non-200 response yields an empty page
// along with an error envelope describing the failure.
func (c *Client) ListComparisons(ctx context.Context, req core.ListRequest) (*core.Page, error) {
	if c == nil {
		return &core.Page{}, errors.New("draftable client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pageURL, err := c.ListURL(req)
	if err != nil {
		return &core.Page{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return &core.Page{}, err
	}
	c.setHeaders(httpReq)

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return &core.Page{}, apperrors.WrapExternalService(ctx, err, "list comparisons request failed")
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		body := readExcerpt(resp.Body)
		return &core.Page{}, apperrors.FromStatus(ctx, resp.StatusCode, body,
			fmt.Sprintf("Failed to list comparisons: %d %s", resp.StatusCode, body))
	}

	page, err := DecodePage(resp.Body)
	if err != nil {
		return &core.Page{}, apperrors.WrapExternalService(ctx, err, "decode comparisons page")
	}
	return page, nil
}

// DeleteComparison deletes one comparison. Only 204 No Content is success.
func (c *Client) DeleteComparison(ctx context.Context, identifier string) error {
	if c == nil {
		return errors.New("draftable client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return apperrors.NewInvalidInputError("comparison identifier is required")
	}

	itemURL, err := c.ItemURL(identifier)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, itemURL, nil)
	if err != nil {
		return err
	}
	c.setHeaders(httpReq)

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return apperrors.WrapExternalService(ctx, err, fmt.Sprintf("Failed to delete %s", identifier))
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	body := readExcerpt(resp.Body)
	return apperrors.FromStatus(ctx, resp.StatusCode, body,
		fmt.Sprintf("Failed to delete %s: %d %s", identifier, resp.StatusCode, body))
}

// ListURL renders the collection URL for a cursor.
func (c *Client) ListURL(req core.ListRequest) (string, error) {
	base, err := c.collectionURL()
	if err != nil {
		return "", err
	}
	query := base.Query()
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Paged {
		query.Set("offset", strconv.Itoa(req.Offset))
	}
	base.RawQuery = query.Encode()
	return base.String(), nil
}

// ItemURL renders the URL of a single comparison.
func (c *Client) ItemURL(identifier string) (string, error) {
	base, err := c.collectionURL()
	if err != nil {
		return "", err
	}
	return base.String() + "/" + url.PathEscape(identifier), nil
}

func (c *Client) collectionURL() (*url.URL, error) {
	raw := strings.TrimSpace(c.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("invalid api base url %q: %v", raw, err))
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("invalid api base url %q", raw))
	}
	return parsed.JoinPath(comparisonsPath), nil
}

func (c *Client) setHeaders(req *http.Request) {
	key := c.APIKey
	if strings.TrimSpace(key) == "" {
		key = PlaceholderAPIKey
	}
	req.Header.Set("Authorization", "Token "+key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
}

func (c *Client) client() *http.Client {
	if c.HTTP == nil {
		c.HTTP = NewHTTPClient(&http.Client{Timeout: c.timeout()}, c.Limiter)
	}
	return c.HTTP
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 30 * time.Second
}

// DecodePage parses a list response body. The total count is coerced to an
// integer; anything missing or non-numeric becomes 0.
func DecodePage(r io.Reader) (*core.Page, error) {
	var payload struct {
		Count   json.RawMessage   `json:"count"`
		Results []json.RawMessage `json:"results"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, err
	}

	page := &core.Page{
		TotalCount: parseCount(payload.Count),
		Items:      make([]core.Comparison, 0, len(payload.Results)),
	}
	for _, raw := range payload.Results {
		page.Items = append(page.Items, decodeComparison(raw))
	}
	return page, nil
}

func decodeComparison(raw json.RawMessage) core.Comparison {
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)

	comparison := core.Comparison{Raw: fields}
	comparison.Identifier = stringField(fields, "identifier")
	comparison.CreationTime = stringField(fields, "creation_time")
	comparison.ExpiryTime = stringField(fields, "expiry_time")
	comparison.Public, _ = fields["public"].(bool)
	comparison.Ready, _ = fields["ready"].(bool)
	comparison.Failed, _ = fields["failed"].(bool)
	return comparison
}

func stringField(fields map[string]any, key string) string {
	switch value := fields[key].(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

func parseCount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0
	}

	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0
		}
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 0 {
			return 0
		}
		return n
	default:
		return 0
	}
}

func readExcerpt(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxBodyExcerpt))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
