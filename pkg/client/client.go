package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// Client calls a celebtwin server. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	obs       *observer
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{userAgent: "celebtwin-go"}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("celebtwin: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("celebtwin: base url must be http or https, got %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:   u,
		http:      hc,
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		obs:       obs,
	}, nil
}

// Search ranks the server's gallery against img.
func (c *Client) Search(ctx context.Context, img Image) (res SearchResult, err error) {
	call := newCall("search", []string{"image"}, img)
	defer func(start time.Time) {
		if err == nil && !res.Success {
			call.noMatch = res.Error
		}
		c.obs.finish(call, start, err)
	}(time.Now())

	err = c.postImages(ctx, "/search", call, &res)
	return res, err
}

// Compare scores two images against each other.
func (c *Client) Compare(ctx context.Context, a, b Image) (res CompareResult, err error) {
	call := newCall("compare", []string{"image1", "image2"}, a, b)
	defer func(start time.Time) {
		if err == nil && !res.Success {
			call.noMatch = res.Error
		}
		c.obs.finish(call, start, err)
	}(time.Now())

	err = c.postImages(ctx, "/compare", call, &res)
	return res, err
}

// Health fetches the server health report. A degraded server answers 503
// with a report; that is returned without error.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	call := newCall("health", nil)
	defer func(start time.Time) { c.obs.finish(call, start, err) }(time.Now())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/health"), http.NoBody)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("celebtwin: build request: %w", err)
	}
	resp, err := c.do(req, call)
	if err != nil {
		return HealthStatus{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeAPIError(resp)
	}
	if err := decodeJSON(resp.Body, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

func (c *Client) postImages(ctx context.Context, path string, call *call, out any) error {
	body, contentType, err := encodeMultipart(call.fields, call.images)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("celebtwin: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req, call)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return decodeJSON(resp.Body, out)
}

func (c *Client) do(req *http.Request, call *call) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("celebtwin: %s %s: %w", req.Method, req.URL.Path, err)
	}
	call.status = resp.StatusCode
	return resp, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

func encodeMultipart(fields []string, imgs []Image) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i, field := range fields {
		img := imgs[i]
		if len(img.Data) == 0 {
			return nil, "", fmt.Errorf("celebtwin: %s is empty", field)
		}
		name := img.Name
		if name == "" {
			name = field + ".jpg"
		}
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			return nil, "", fmt.Errorf("celebtwin: encode %s: %w", field, err)
		}
		if _, err := fw.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("celebtwin: encode %s: %w", field, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("celebtwin: encode body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(io.LimitReader(r, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("celebtwin: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	} else if len(raw) > 0 {
		apiErr.Details = strings.TrimSpace(string(raw))
	}
	return apiErr
}
