package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// Fetcher downloads a track to a temp file when the server wants its auth
// in headers rather than in the URL. ffmpeg never sees the token that way.
type Fetcher struct {
	client  *http.Client
	headers func() map[string]string
	logger  *log.Entry
}

func NewFetcher(headers func() map[string]string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		headers: headers,
		logger: log.WithFields(log.Fields{
			"module": "audio",
		}),
	}
}

// Fetch downloads url into a temp file and returns its path. The caller
// owns the file and removes it when done with it.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	if f.headers != nil {
		for key, value := range f.headers() {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching track: HTTP %d", resp.StatusCode)
	}

	file, err := os.CreateTemp("", "plexbeat-*.audio")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	written, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("writing temp file: %w", err)
	}

	f.logger.Debugf("fetched %.2f MB in %v", float64(written)/(1024*1024), time.Since(start))
	return file.Name(), nil
}
