package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"plexbeat/config"
)

// ErrDisabled is returned when no API key is configured. Callers surface it
// instead of attempting a request that can only fail.
var ErrDisabled = errors.New("gemini recommendations are disabled")

const defaultModel = "gemini-2.0-flash"

// Seed is one track from the listening history used to anchor suggestions.
type Seed struct {
	Title  string
	Artist string
}

// Suggestion is one track the model proposed. It carries names only; the
// caller decides whether the library actually has it.
type Suggestion struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

type Client struct {
	apiKey string
	model  string
	logger *log.Entry
}

func New() *Client {
	return &Client{
		apiKey: config.Config.Gemini.APIKey,
		model:  defaultModel,
		logger: log.WithFields(log.Fields{
			"module": "gemini",
		}),
	}
}

func (c *Client) Enabled() bool {
	return config.Config.Gemini.Enabled && c.apiKey != ""
}

// SuggestTracks asks the model for up to limit tracks similar to the seeds.
// Suggestions that merely repeat a seed are dropped.
func (c *Client) SuggestTracks(ctx context.Context, seeds []Seed, limit int) ([]Suggestion, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if len(seeds) == 0 {
		return nil, errors.New("no seed tracks")
	}
	if limit <= 0 {
		limit = 10
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	prompt := buildPrompt(seeds, limit)
	response, err := client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("generating suggestions: %w", err)
	}

	suggestions := parseSuggestions(response.Text(), seeds, limit)
	if len(suggestions) == 0 {
		return nil, errors.New("model returned no usable suggestions")
	}

	c.logger.Debugf("model suggested %d tracks from %d seeds", len(suggestions), len(seeds))
	return suggestions, nil
}

func buildPrompt(seeds []Seed, limit int) string {
	var sb strings.Builder
	sb.WriteString(curatorPrompt)
	sb.WriteString(fmt.Sprintf("\n\nSuggest exactly %d tracks. The listener has recently played:\n", limit))
	for _, seed := range seeds {
		if seed.Artist != "" {
			sb.WriteString(fmt.Sprintf("%s - %s\n", seed.Artist, seed.Title))
		} else {
			sb.WriteString(seed.Title + "\n")
		}
	}
	return sb.String()
}

// parseSuggestions extracts "Artist - Title" lines from the model output,
// tolerating numbered lists and bullet markers. Lines without the separator
// and repeats of the seeds are skipped.
func parseSuggestions(text string, seeds []Seed, limit int) []Suggestion {
	seen := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		seen[strings.ToLower(seed.Artist+"|"+seed.Title)] = true
	}

	var suggestions []Suggestion
	for _, line := range strings.Split(text, "\n") {
		line = stripListMarker(strings.TrimSpace(line))
		if line == "" {
			continue
		}

		artist, title, found := strings.Cut(line, " - ")
		if !found {
			continue
		}
		artist = strings.TrimSpace(artist)
		title = strings.Trim(strings.TrimSpace(title), `"`)
		if artist == "" || title == "" {
			continue
		}

		key := strings.ToLower(artist + "|" + title)
		if seen[key] {
			continue
		}
		seen[key] = true

		suggestions = append(suggestions, Suggestion{Artist: artist, Title: title})
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions
}

// stripListMarker removes "1." / "2)" numbering and bullet prefixes without
// eating artists whose names start with a digit.
func stripListMarker(line string) string {
	unnumbered := strings.TrimLeft(line, "0123456789")
	if unnumbered != line && (strings.HasPrefix(unnumbered, ".") || strings.HasPrefix(unnumbered, ")")) {
		line = strings.TrimLeft(unnumbered, ".)")
	}
	return strings.TrimSpace(strings.TrimLeft(line, "-* "))
}
