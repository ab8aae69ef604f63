package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html"

	"github.com/use-agent/productlens/models"
)

// HTTPEngine fetches pages and images over plain net/http with a Chrome-like
// TLS fingerprint and browser headers, which is enough to get past trivial
// bot filters on most storefronts.
type HTTPEngine struct {
	client  *http.Client
	opts    HTTPOptions
	headers http.Header
}

// HTTPOptions configures an HTTPEngine.
type HTTPOptions struct {
	UserAgent     string
	PageTimeout   time.Duration
	MaxPageBytes  int64
	MaxImageBytes int64
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls conn.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine. Zero-valued options get defaults.
func NewHTTPEngine(opts HTTPOptions) *HTTPEngine {
	if opts.UserAgent == "" {
		opts.UserAgent = chromeUA
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 12 * time.Second
	}
	if opts.MaxPageBytes <= 0 {
		opts.MaxPageBytes = 10 << 20
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = 15 << 20
	}

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2:   false,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}

	headers := http.Header{}
	headers.Set("User-Agent", opts.UserAgent)
	headers.Set("Accept-Language", "en-US,en;q=0.9")
	headers.Set("Cache-Control", "no-cache")

	return &HTTPEngine{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		opts:    opts,
		headers: headers,
	}
}

// FetchPage GETs an HTML document under the page timeout. Non-2xx statuses
// and non-HTML content types are failures.
func (e *HTTPEngine) FetchPage(ctx context.Context, url string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.PageTimeout)
	defer cancel()

	resp, err := e.get(ctx, url, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.FetchError{Kind: models.FetchKindStatus, URL: url, StatusCode: resp.StatusCode}
	}
	ct := resp.Header.Get("Content-Type")
	if !isHTMLContentType(ct) {
		return nil, &models.FetchError{
			Kind:       models.FetchKindContentType,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("content-type %q", ct),
		}
	}

	body, err := readCapped(resp, url, e.opts.MaxPageBytes)
	if err != nil {
		return nil, err
	}

	bodyStr := string(body)
	return &Page{
		HTML:       bodyStr,
		Title:      extractTitle(bodyStr),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

// FetchAsset GETs a binary resource. The caller owns the deadline.
func (e *HTTPEngine) FetchAsset(ctx context.Context, url string) (*Asset, error) {
	resp, err := e.get(ctx, url, "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.FetchError{Kind: models.FetchKindStatus, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := readCapped(resp, url, e.opts.MaxImageBytes)
	if err != nil {
		return nil, err
	}

	return &Asset{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

// readCapped reads the whole body or fails with FetchKindBody when it is
// larger than limit. A truncated body is never returned.
func readCapped(resp *http.Response, url string, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &models.FetchError{Kind: classify(err, models.FetchKindBody), URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(body)) > limit {
		return nil, &models.FetchError{
			Kind:       models.FetchKindBody,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("body exceeds %d bytes", limit),
		}
	}
	return body, nil
}

func (e *HTTPEngine) get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.FetchError{Kind: models.FetchKindNetwork, URL: url, Err: err}
	}
	for k, v := range e.headers {
		req.Header[k] = v
	}
	req.Header.Set("Accept", accept)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &models.FetchError{Kind: classify(err, models.FetchKindNetwork), URL: url, Err: err}
	}
	return resp, nil
}

// classify maps deadline errors to FetchKindTimeout and everything else to fallback.
func classify(err error, fallback models.FetchErrorKind) models.FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FetchKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.FetchKindTimeout
	}
	return fallback
}

// isHTMLContentType returns true if the content-type header looks like HTML.
// A missing header is accepted since many storefront CDNs omit it.
func isHTMLContentType(ct string) bool {
	if strings.TrimSpace(ct) == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.ToLower(ct)
	}
	return strings.Contains(mt, "text/html") || strings.Contains(mt, "application/xhtml+xml")
}

// extractTitle uses the Go HTML tokenizer to find the first <title> element.
// Whitespace runs are folded to single spaces.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.Join(strings.Fields(string(tokenizer.Text())), " ")
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
