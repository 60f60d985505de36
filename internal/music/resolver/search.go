// /internal/music/resolver/search.go
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

var (
	searchResultPattern = regexp.MustCompile(`"url":"/watch\?v=([a-zA-Z0-9_-]{11})`)
	ErrNoVideoMatch     = errors.New("no video found for the given query")
)

// searchClient scrapes the top result from a free-text video search.
type searchClient struct {
	BaseURL string
	Client  *http.Client
}

func newSearchClient() *searchClient {
	return &searchClient{
		BaseURL: "https://www.youtube.com",
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *searchClient) FirstVideoURL(ctx context.Context, query string) (string, error) {
	searchURL := fmt.Sprintf("%s/results?search_query=%s", c.BaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("video search failed with status code %v", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	matches := searchResultPattern.FindStringSubmatch(string(body))
	if len(matches) > 1 {
		return fmt.Sprintf("%s/watch?v=%s", c.BaseURL, matches[1]), nil
	}

	return "", ErrNoVideoMatch
}
