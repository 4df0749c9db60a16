// Package probe issues the primary HTTP check against a website and derives
// the check status from the response. HTTP error statuses are data, not
// failures: only transport-level errors produce an error status.
package probe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"sitewatch/internal/models"
)

const maxBodyReadBytes = 2 * 1024 * 1024

// Result captures everything learned from a single probe.
type Result struct {
	Status         string
	StatusCode     *int
	ResponseTimeMS int64
	Headers        map[string][]string
	ContentHash    *string
	Body           []byte // raw body bytes, capped at maxBodyReadBytes
	BodyText       string // body decoded to UTF-8 for downstream HTML scanning
	ErrorMessage   *string
	FinalURL       string
}

// Prober performs HTTP GET probes with certificate verification enabled.
type Prober struct {
	client *http.Client
}

// New creates a Prober whose requests time out after the given duration.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Prober{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch issues a GET against targetURL with the given custom headers and
// returns a fully populated Result. It never returns an error: transport
// failures are folded into the Result with status "error".
func (p *Prober) Fetch(ctx context.Context, targetURL string, headers map[string]string) Result {
	start := time.Now()
	result := Result{Status: models.StatusUnknown}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return p.fail(result, start, fmt.Sprintf("invalid request: %v", err))
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return p.fail(result, start, err.Error())
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	result.ResponseTimeMS = time.Since(start).Milliseconds()
	code := resp.StatusCode
	result.StatusCode = &code
	result.FinalURL = resp.Request.URL.String()

	result.Headers = make(map[string][]string, len(resp.Header))
	for k, v := range resp.Header {
		result.Headers[k] = v
	}

	rawBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadBytes))
	if readErr != nil && readErr != io.EOF {
		// Body read failure after a successful response: keep the status
		// derivation, just skip hashing.
		result.Status = deriveStatus(code)
		if result.Status == models.StatusDown {
			msg := fmt.Sprintf("HTTP %d error", code)
			result.ErrorMessage = &msg
		}
		return result
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(rawBody))
	result.ContentHash = &hash
	result.Body = rawBody
	result.BodyText = decodeBody(rawBody, resp.Header.Get("Content-Type"))

	result.Status = deriveStatus(code)
	if result.Status == models.StatusDown {
		msg := fmt.Sprintf("HTTP %d error", code)
		result.ErrorMessage = &msg
	}
	return result
}

func (p *Prober) fail(result Result, start time.Time, msg string) Result {
	result.Status = models.StatusError
	result.ErrorMessage = &msg
	result.ResponseTimeMS = time.Since(start).Milliseconds()
	return result
}

// deriveStatus maps an HTTP status code to a check status:
// 2xx is up, >=400 is down, anything else (1xx/3xx) is a warning.
func deriveStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return models.StatusUp
	case code >= 400:
		return models.StatusDown
	default:
		return models.StatusWarning
	}
}

// decodeBody converts the raw body to UTF-8 using the response content type.
// On any conversion problem the raw bytes are used as-is.
func decodeBody(raw []byte, contentType string) string {
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
