package pages

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxTitlesPerQuery is the MediaWiki limit for unauthenticated clients.
const maxTitlesPerQuery = 50

// PageInfo is the metadata for one requested title. Title is the title as
// requested, even when the wiki normalized or redirected it.
type PageInfo struct {
	Title   string
	PageID  int64
	RevID   int64
	Missing bool
}

// Client queries a MediaWiki Action API for page metadata.
type Client struct {
	apiURL    string
	userAgent string
	client    *http.Client
}

// NewClient creates a metadata client for the given Action API endpoint.
func NewClient(apiURL, userAgent string) *Client {
	return &Client{
		apiURL:    apiURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type titleMapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PageInfo fetches current metadata for up to 50 titles in one request.
// Results come back keyed by requested title, with normalization and
// redirects resolved.
func (c *Client) PageInfo(titles []string) ([]PageInfo, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	if len(titles) > maxTitlesPerQuery {
		return nil, fmt.Errorf("metadata query: %d titles exceeds the per-request limit of %d", len(titles), maxTitlesPerQuery)
	}

	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"prop":          {"info"},
		"redirects":     {"1"},
		"titles":        {strings.Join(titles, "|")},
	}

	req, err := http.NewRequest("GET", c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata query: status %d", resp.StatusCode)
	}

	var result struct {
		Error *struct {
			Code string `json:"code"`
			Info string `json:"info"`
		} `json:"error"`
		Query struct {
			Normalized []titleMapping `json:"normalized"`
			Redirects  []titleMapping `json:"redirects"`
			Pages      []struct {
				PageID    int64  `json:"pageid"`
				Title     string `json:"title"`
				Missing   bool   `json:"missing"`
				LastRevID int64  `json:"lastrevid"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("metadata query: decoding response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("metadata query: %s: %s", result.Error.Code, result.Error.Info)
	}

	normalized := mappingTable(result.Query.Normalized)
	redirects := mappingTable(result.Query.Redirects)

	byTitle := make(map[string]int, len(result.Query.Pages))
	for i, p := range result.Query.Pages {
		byTitle[p.Title] = i
	}

	infos := make([]PageInfo, 0, len(titles))
	for _, requested := range titles {
		resolved := resolveTitle(requested, normalized, redirects)
		info := PageInfo{Title: requested, Missing: true}
		if i, ok := byTitle[resolved]; ok {
			p := result.Query.Pages[i]
			info.PageID = p.PageID
			info.RevID = p.LastRevID
			info.Missing = p.Missing
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func mappingTable(mappings []titleMapping) map[string]string {
	if len(mappings) == 0 {
		return nil
	}
	table := make(map[string]string, len(mappings))
	for _, m := range mappings {
		table[m.From] = m.To
	}
	return table
}

// resolveTitle follows normalization then redirect mappings to the title the
// wiki actually answered under. Redirect chains are bounded to guard against
// cycles in the response.
func resolveTitle(title string, normalized, redirects map[string]string) string {
	if to, ok := normalized[title]; ok {
		title = to
	}
	for i := 0; i < 5; i++ {
		to, ok := redirects[title]
		if !ok {
			break
		}
		title = to
	}
	return title
}
