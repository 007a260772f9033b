package plex

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sentry "github.com/getsentry/sentry-go"
)

// ErrPINPending is returned by CheckPIN while the user has not yet approved
// the PIN on plex.tv. Callers poll until the error clears or the PIN expires.
var ErrPINPending = errors.New("pin not yet authorized")

// ErrPINExpired is returned when plex.tv no longer knows the PIN.
var ErrPINExpired = errors.New("pin expired")

// RequestPIN asks plex.tv for a new login PIN. The returned code is shown
// to the user; the ID is what CheckPIN polls.
func (c *Client) RequestPIN(ctx context.Context) (*PIN, error) {
	span := sentry.StartSpan(ctx, "plex.request_pin")
	span.Description = "Request login PIN from plex.tv"
	defer span.Finish()

	var pin PIN
	if err := c.do(ctx, "POST", c.plexTV+"/api/v2/pins?strong=true", &pin); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("requesting pin: %w", err)
	}
	if pin.ID == 0 || pin.Code == "" {
		span.Status = sentry.SpanStatusInternalError
		return nil, errors.New("pin response missing id or code")
	}

	span.Status = sentry.SpanStatusOK
	c.logger.Debugf("issued login pin %d", pin.ID)
	return &pin, nil
}

// CheckPIN polls one PIN. It returns the PIN with a non-empty AuthToken
// once the user has approved it, ErrPINPending while they have not, and
// ErrPINExpired when plex.tv answers 404.
func (c *Client) CheckPIN(ctx context.Context, id int64) (*PIN, error) {
	var pin PIN
	err := c.getJSON(ctx, fmt.Sprintf("%s/api/v2/pins/%d", c.plexTV, id), &pin)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPINExpired
		}
		return nil, fmt.Errorf("checking pin %d: %w", id, err)
	}

	if pin.AuthToken == "" {
		return &pin, ErrPINPending
	}
	return &pin, nil
}

// BuildAuthURL is where the user approves the PIN, usually opened on
// another device.
func (c *Client) BuildAuthURL(code string) string {
	params := url.Values{}
	params.Set("clientID", c.ClientIdentifier())
	params.Set("code", code)
	params.Set("context[device][product]", c.product)
	return "https://app.plex.tv/auth#?" + params.Encode()
}

// Account fetches the plex.tv user the current token belongs to.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	if c.Token() == "" {
		return nil, errors.New("no token set")
	}

	var account Account
	if err := c.getJSON(ctx, c.plexTV+"/api/v2/user", &account); err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return &account, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "HTTP 404")
}
