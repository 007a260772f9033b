package plex

import (
	"context"
	"fmt"
	"strings"

	sentry "github.com/getsentry/sentry-go"
)

// Resources fetches the account's devices from plex.tv and returns the
// ones that provide a media server. Each carries its own access token and
// the full candidate connection set for the selector.
func (c *Client) Resources(ctx context.Context) ([]Server, error) {
	span := sentry.StartSpan(ctx, "plex.resources")
	span.Description = "Discover servers via plex.tv resources"
	defer span.Finish()

	var resources []Server
	url := c.plexTV + "/api/v2/resources?includeHttps=1&includeRelay=1&includeIPv6=1"
	if err := c.getJSON(ctx, url, &resources); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("fetching resources: %w", err)
	}

	servers := make([]Server, 0, len(resources))
	for _, resource := range resources {
		if !strings.Contains(resource.Provides, "server") {
			continue
		}
		servers = append(servers, resource)
	}

	span.Status = sentry.SpanStatusOK
	span.SetData("server_count", len(servers))
	c.logger.Debugf("discovered %d servers", len(servers))
	return servers, nil
}

// PickServer selects the endpoint to use: the first server whose best
// connection answers an identity probe. Returns the server (for its access
// token) and the chosen URI.
func (c *Client) PickServer(ctx context.Context, isLocalDevelopment bool) (*Server, string, error) {
	servers, err := c.Resources(ctx)
	if err != nil {
		return nil, "", err
	}
	if len(servers) == 0 {
		return nil, "", fmt.Errorf("account has no servers")
	}

	for i := range servers {
		server := &servers[i]
		uri := SelectBestConnection(server.Connections, isLocalDevelopment)
		if uri == "" {
			continue
		}
		if err := c.TestConnection(ctx, uri); err != nil {
			c.logger.Warnf("server %s unreachable at %s: %v", server.Name, uri, err)
			continue
		}
		c.logger.Infof("using server %s at %s", server.Name, uri)
		return server, uri, nil
	}

	return nil, "", fmt.Errorf("no reachable server connection")
}
