// Package wikipedia fetches plain-text biographies from the MediaWiki API.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"flikz/internal/metrics"

	retry "github.com/avast/retry-go/v4"
)

// sectionMarkers end the introduction; everything after the first one is dropped.
var sectionMarkers = []string{"== Career ==", "== קריירה ==", "== חיים אישיים ==", "== פילמוגרפיה =="}

var (
	parenthesized = regexp.MustCompile(`\(.+?\)`)
	headings      = regexp.MustCompile(`==.*==`)
	blankRuns     = regexp.MustCompile(`\n{2,}`)
)

type Client struct {
	httpc *http.Client
	// baseURL is a format string taking the language code.
	baseURL string
}

func NewClient(httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpc: httpc, baseURL: "https://%s.wikipedia.org/w/api.php"}
}

type queryResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string  `json:"title"`
			Extract string  `json:"extract"`
			Missing *string `json:"missing,omitempty"`
		} `json:"pages"`
	} `json:"query"`
}

// Bio returns the cleaned introduction of name's article in lang, falling back to English.
// An empty string with a nil error means neither wiki has an article.
func (c *Client) Bio(ctx context.Context, name, lang string) (string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		lang = "en"
	}
	title := strings.TrimSpace(parenthesized.ReplaceAllString(strings.TrimSpace(name), ""))
	if title == "" {
		return "", nil
	}

	extract, err := c.extract(ctx, title, lang)
	if err != nil {
		log.Printf("[wikipedia] %s lookup for %q failed: %v", lang, title, err)
	}
	bio := Clean(extract)
	if bio == "" && lang != "en" {
		extract, err = c.extract(ctx, title, "en")
		bio = Clean(extract)
	}
	if bio == "" && err != nil {
		return "", err
	}
	return bio, nil
}

func (c *Client) extract(ctx context.Context, title, lang string) (string, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("explaintext", "true")
	q.Set("format", "json")
	q.Set("redirects", "1")
	q.Set("titles", title)
	endpoint := fmt.Sprintf(c.baseURL, url.PathEscape(lang)) + "?" + q.Encode()

	var payload queryResponse
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", "flikz/1.0")
			start := time.Now()
			resp, err := c.httpc.Do(req)
			if err != nil {
				metrics.RecordUpstream("wikipedia", lang, "retry", time.Since(start))
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				metrics.RecordUpstream("wikipedia", lang, "retry", time.Since(start))
				return fmt.Errorf("wikipedia request failed: %s", resp.Status)
			}
			if resp.StatusCode >= 400 {
				metrics.RecordUpstream("wikipedia", lang, "error", time.Since(start))
				return retry.Unrecoverable(fmt.Errorf("wikipedia request failed: %s", resp.Status))
			}
			metrics.RecordUpstream("wikipedia", lang, "ok", time.Since(start))
			return json.NewDecoder(resp.Body).Decode(&payload)
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}
	for _, page := range payload.Query.Pages {
		if page.Missing != nil {
			continue
		}
		if text := strings.TrimSpace(page.Extract); text != "" {
			return text, nil
		}
	}
	return "", nil
}

// Clean cuts an extract at the first known section marker and strips the remaining headings.
func Clean(extract string) string {
	cut := len(extract)
	for _, marker := range sectionMarkers {
		if idx := strings.Index(extract, marker); idx > -1 && idx < cut {
			cut = idx
		}
	}
	text := headings.ReplaceAllString(extract[:cut], "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Truncate shortens text to at most words words, appending an ellipsis when something was cut.
func Truncate(text string, words int) string {
	fields := strings.Fields(text)
	if words <= 0 || len(fields) <= words {
		return strings.TrimSpace(text)
	}
	return strings.Join(fields[:words], " ") + "..."
}
