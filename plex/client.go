package plex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const plexTVBaseURL = "https://plex.tv"

// Client talks to plex.tv and to a media server. It is constructed once in
// main and passed down; the token may be swapped after a PIN login.
type Client struct {
	httpClient *http.Client
	plexTV     string // overridable for tests
	logger     *log.Entry

	mutex     sync.RWMutex
	token     string
	clientID  string
	product   string
	version   string
	machineID string
}

type Options struct {
	Token            string
	ClientIdentifier string
	Product          string
	Version          string
	Timeout          time.Duration
}

func NewClient(opts Options) *Client {
	if opts.ClientIdentifier == "" {
		opts.ClientIdentifier = "plexbeat-" + uuid.NewString()
	}
	if opts.Product == "" {
		opts.Product = "plexbeat"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		plexTV:     plexTVBaseURL,
		token:      opts.Token,
		clientID:   opts.ClientIdentifier,
		product:    opts.Product,
		version:    opts.Version,
		logger: log.WithFields(log.Fields{
			"module": "plex",
		}),
	}
}

// SetToken swaps the auth token, typically after a PIN login completes.
func (c *Client) SetToken(token string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.token
}

func (c *Client) ClientIdentifier() string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.clientID
}

// IdentificationHeaders returns the X-Plex header set for out-of-band
// fetches done outside this client (the engine's authenticated loads).
func (c *Client) IdentificationHeaders() map[string]string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	headers := map[string]string{
		"X-Plex-Client-Identifier": c.clientID,
		"X-Plex-Product":           c.product,
		"X-Plex-Version":           c.version,
		"Accept":                   "application/json",
	}
	if c.token != "" {
		headers["X-Plex-Token"] = c.token
	}
	return headers
}

// setHeaders applies the identification headers Plex expects on every
// request. Without Accept: application/json plex.tv answers in XML.
func (c *Client) setHeaders(req *http.Request) {
	for key, value := range c.IdentificationHeaders() {
		req.Header.Set(key, value)
	}
}

func (c *Client) do(ctx context.Context, method, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, url, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: HTTP %d", method, stripToken(url), resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", stripToken(url), err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, out)
}

// stripToken keeps tokens out of error strings and logs.
func stripToken(url string) string {
	if idx := strings.Index(url, "X-Plex-Token="); idx >= 0 {
		end := idx + len("X-Plex-Token=")
		rest := url[end:]
		if amp := strings.Index(rest, "&"); amp >= 0 {
			return url[:end] + "REDACTED" + rest[amp:]
		}
		return url[:end] + "REDACTED"
	}
	return url
}

// Identity fetches the machine identifier of the server at serverURI.
// The result is cached; playlist creation needs it for item URIs.
func (c *Client) Identity(ctx context.Context, serverURI string) (string, error) {
	c.mutex.RLock()
	cached := c.machineID
	c.mutex.RUnlock()
	if cached != "" {
		return cached, nil
	}

	var envelope mediaContainerEnvelope
	if err := c.getJSON(ctx, serverURI+"/identity", &envelope); err != nil {
		return "", err
	}
	if envelope.MediaContainer.MachineIdentifier == "" {
		return "", fmt.Errorf("identity response missing machineIdentifier")
	}

	c.mutex.Lock()
	c.machineID = envelope.MediaContainer.MachineIdentifier
	c.mutex.Unlock()
	return envelope.MediaContainer.MachineIdentifier, nil
}

// TestConnection probes a candidate endpoint with a short deadline. A
// reachable server answers /identity without auth.
func (c *Client) TestConnection(ctx context.Context, uri string) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, uri+"/identity", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", uri, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probing %s: HTTP %d", uri, resp.StatusCode)
	}
	return nil
}
