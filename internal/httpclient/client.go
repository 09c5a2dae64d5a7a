// Package httpclient is the outbound HTTP client shared by the provider
// adapters. It sets browser-like headers, bounds response sizes and maps
// upstream statuses onto domain errors.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/iconidentify/mediagrab/internal/domain"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultTimeout   = 15 * time.Second
	defaultMaxBody   = 8 << 20
	maxRedirects     = 10
)

// ErrTooManyRedirects is returned when a redirect chain exceeds the cap.
var ErrTooManyRedirects = errors.New("too many redirects")

// Client is an HTTP client for scraping and JSON upstreams.
type Client struct {
	http      *http.Client
	userAgent string
	maxBody   int64
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the overall timeout of each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBody caps how many bytes of a response body are read.
func WithMaxBody(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a new HTTP client.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
		maxBody:   defaultMaxBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// With returns a copy of c with opts applied on top. The copy has its own
// http.Client so timeouts can differ per adapter.
func (c *Client) With(opts ...Option) *Client {
	hc := *c.http
	cp := &Client{http: &hc, userAgent: c.userAgent, maxBody: c.maxBody}
	for _, opt := range opts {
		opt(cp)
	}
	return cp
}

// UserAgent returns the configured User-Agent.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// HTTPClient exposes the underlying client for SDKs that need one.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Request describes one outbound call.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Query  url.Values
	// Exactly one of Form, JSON and Body is used.
	Form url.Values
	JSON any
	Body io.Reader
}

// Response wraps an HTTP response body and metadata.
type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	FinalURL   string
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Do performs the request and returns the whole (bounded) body. Non-2xx
// statuses are returned as errors.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", domain.ErrMalformedResponse, c.maxBody)
	}

	if err := StatusError(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return &Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target := r.URL
	if len(r.Query) > 0 {
		u, err := url.Parse(r.URL)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var body io.Reader
	contentType := ""
	switch {
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded; charset=UTF-8"
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	case r.Body != nil:
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Set headers to mimic browser request
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	return req, nil
}

// StatusError maps an upstream status onto a domain error. body is used
// for a short diagnostic snippet.
func StatusError(code int, body []byte) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrUnauthorized, code)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", domain.ErrRateLimited, code)
	case code < 200 || code > 299:
		if snippet := snippet(body); snippet != "" {
			return fmt.Errorf("%w: %d: %s", domain.ErrUpstreamStatus, code, snippet)
		}
		return fmt.Errorf("%w: %d", domain.ErrUpstreamStatus, code)
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

// FinalURL follows redirects from rawURL and returns where they end,
// without reading the body.
func (c *Client) FinalURL(ctx context.Context, rawURL string, header map[string]string) (string, error) {
	req, err := c.newRequest(ctx, Request{URL: rawURL, Header: header})
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, err)
	}
	resp.Body.Close()

	if err := StatusError(resp.StatusCode, nil); err != nil {
		return "", err
	}
	return resp.Request.URL.String(), nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, rawURL string, header map[string]string) (*Response, error) {
	return c.Do(ctx, Request{URL: rawURL, Header: header})
}

// PostForm performs a form-encoded POST request.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Form: form, Header: header})
}

// JSON performs the request and decodes a JSON body into out.
func (c *Client) JSON(ctx context.Context, r Request, out any) error {
	h := make(map[string]string, len(r.Header)+1)
	h["Accept"] = "application/json, text/plain, */*"
	for k, v := range r.Header {
		h[k] = v
	}
	r.Header = h
	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	return DecodeJSON(resp.Body, out)
}

// Document performs the request and parses the body as HTML.
func (c *Client) Document(ctx context.Context, r Request) (*goquery.Document, error) {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return nil, err
	}
	return ParseHTML(resp.Body)
}

// DecodeJSON decodes body into out, reporting empty or invalid bodies as
// malformed upstream responses.
func DecodeJSON(body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.ErrEmptyResponse
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode json: %v", domain.ErrMalformedResponse, err)
	}
	return nil
}

// ParseHTML parses body into a goquery document.
func ParseHTML(body []byte) (*goquery.Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, domain.ErrEmptyResponse
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", domain.ErrMalformedResponse, err)
	}
	return doc, nil
}

// TextOf returns the trimmed text of the first element matching the selector.
func TextOf(doc *goquery.Selection, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// AttrOf returns the trimmed attribute of the first element matching the
// selector.
func AttrOf(doc *goquery.Selection, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}
