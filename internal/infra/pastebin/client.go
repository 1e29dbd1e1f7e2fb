package pastebin

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
)

type Client struct {
	baseURL    string
	expiration string
	httpClient *http.Client
}

type RequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d: %v", e.Op, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: status=%d", e.Op, e.StatusCode)
	default:
		return e.Op
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func NewClient(baseURL, expiration string, timeout time.Duration) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, &RequestError{Op: "create paste client", Err: errors.New("paste base url is empty")}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, &RequestError{Op: "parse paste base url", Err: err}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, &RequestError{Op: "validate paste base url", Err: fmt.Errorf("invalid paste base url: %s", trimmed)}
	}

	if strings.TrimSpace(expiration) == "" {
		expiration = "never"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		expiration: expiration,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type submitRequest struct {
	Text       string `json:"text"`
	Expiration string `json:"expiration"`
}

type submitResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	FullURL string `json:"full_url"`
}

// Submit uploads the transcript and returns its public URL.
func (c *Client) Submit(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(submitRequest{Text: text, Expiration: c.expiration})
	if err != nil {
		return "", &RequestError{Op: "encode paste request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return "", &RequestError{Op: "build paste request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "JSONHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &RequestError{Op: "submit paste", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &RequestError{Op: "read paste response", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &RequestError{Op: "submit paste", StatusCode: resp.StatusCode}
	}

	var parsed submitResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &RequestError{Op: "decode paste response", StatusCode: resp.StatusCode, Err: err}
	}
	if parsed.Status != 0 {
		return "", &RequestError{
			Op:         "submit paste",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("paste service rejected submission: %s", parsed.Message),
		}
	}
	if strings.TrimSpace(parsed.FullURL) == "" {
		return "", &RequestError{Op: "submit paste", StatusCode: resp.StatusCode, Err: errors.New("paste response has no url")}
	}

	return parsed.FullURL, nil
}
