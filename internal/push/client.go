package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"rental-push-go/internal/vapid"
)

const (
	// DefaultTimeout bounds a single delivery attempt.
	DefaultTimeout = 10 * time.Second

	// TTL is how long, in seconds, the push service keeps an undelivered message.
	TTL = 86400
)

// Client performs Web Push (RFC 8030) requests authenticated with VAPID.
type Client struct {
	httpClient *http.Client
	publicKey  string
}

// NewClient creates a delivery client. A nil httpClient gets one bounded by
// DefaultTimeout. Redirects are never followed: the status of the POST itself
// is what gets classified.
func NewClient(httpClient *http.Client, publicKey string) *Client {
	c := http.Client{Timeout: DefaultTimeout}
	if httpClient != nil {
		c = *httpClient
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Client{
		httpClient: &c,
		publicKey:  publicKey,
	}
}

// Send POSTs body to endpoint and returns the push service's status code.
// Status semantics are left to the caller.
func (c *Client) Send(ctx context.Context, endpoint, token string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create push request: %w", err)
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Authorization", vapid.Header(token, c.publicKey))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("TTL", strconv.Itoa(TTL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}

// Notification is an inbound dispatch request.
type Notification struct {
	UserID  string `json:"user_id"`
	Titre   string `json:"titre"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// Validate checks the required fields.
func (n Notification) Validate() error {
	var missing []string
	if n.UserID == "" {
		missing = append(missing, "user_id")
	}
	if n.Titre == "" {
		missing = append(missing, "titre")
	}
	if n.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingFields, missing)
	}
	return nil
}

type payload struct {
	Titre   string `json:"titre"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

// EncodePayload renders the plaintext push body. An empty URL falls back to
// defaultURL.
func EncodePayload(n Notification, defaultURL string) ([]byte, error) {
	url := n.URL
	if url == "" {
		url = defaultURL
	}
	return json.Marshal(payload{Titre: n.Titre, Message: n.Message, URL: url})
}
