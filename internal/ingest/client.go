package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"xplorer/internal/apperr"
)

const maxAttempts = 3

// Client talks to the arXiv export API and e-print mirror.
type Client struct {
	APIURL    string
	EprintURL string
	PDFURL    string

	client *http.Client
	sleep  func(time.Duration)
}

func NewClient(apiURL, eprintURL string) *Client {
	return &Client{
		APIURL:    apiURL,
		EprintURL: eprintURL,
		PDFURL:    strings.Replace(eprintURL, "/e-print", "/pdf", 1),
		client:    &http.Client{Timeout: 60 * time.Second},
		sleep:     time.Sleep,
	}
}

// Meta is the metadata of one paper as returned by the arXiv API.
type Meta struct {
	ID       string
	Title    string
	Abstract string
	Date     string
	Authors  string
}

// Atom response of the export API. Only the fields the record needs.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// Metadata fetches title, abstract, date, and authors for an identifier.
func (c *Client) Metadata(ctx context.Context, id string) (*Meta, error) {
	const op = "ingest.Client.Metadata"

	query := url.Values{"id_list": {id}, "max_results": {"1"}}
	body, err := c.get(ctx, c.APIURL+"?"+query.Encode())
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderFailure, op, err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, apperr.Wrap(apperr.ParseFailure, op, err)
	}
	// The API answers unknown ids with a feed whose single entry has no
	// title, or with no entries at all.
	if len(feed.Entries) == 0 || strings.TrimSpace(feed.Entries[0].Title) == "" {
		return nil, apperr.New(apperr.NotFound, op, "arXiv id %s not found", id)
	}

	entry := feed.Entries[0]
	meta := &Meta{
		ID:       id,
		Title:    CleanSpaces(entry.Title),
		Abstract: CleanSpaces(entry.Summary),
	}
	if len(entry.Published) >= 10 {
		meta.Date = entry.Published[:10]
	}
	names := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			names = append(names, name)
		}
	}
	meta.Authors = strings.Join(names, ", ")
	return meta, nil
}

// DownloadSource fetches the e-print archive bytes for an identifier. The
// payload may be a gzipped tar of LaTeX sources, a gzipped single tex file,
// or a bare PDF; Unpack sorts that out.
func (c *Client) DownloadSource(ctx context.Context, id string) ([]byte, error) {
	const op = "ingest.Client.DownloadSource"
	body, err := c.get(ctx, c.EprintURL+"/"+id)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderFailure, op, err)
	}
	return body, nil
}

// DownloadPDF fetches the rendered PDF for an identifier.
func (c *Client) DownloadPDF(ctx context.Context, id string) ([]byte, error) {
	const op = "ingest.Client.DownloadPDF"
	body, err := c.get(ctx, c.PDFURL+"/"+id)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderFailure, op, err)
	}
	return body, nil
}

// get performs a GET with bounded retries on transport errors and 5xx
// responses.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			c.sleep(retryDelay(attempt - 1))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d from %s", resp.StatusCode, url)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d from %s", resp.StatusCode, url)
		}
		return body, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func retryDelay(attempt int) time.Duration {
	d := 2 * time.Second << (attempt - 1)
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}
