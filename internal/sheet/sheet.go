// Package sheet fetches and parses the supplier price feed: a row-oriented
// CSV whose columns are, in order, external identifier (barcode), display
// name, free-text category, and free-text price.
package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// ErrNoURL reports that the feed location has not been configured. It is
// returned before any network I/O happens.
var ErrNoURL = errors.New("sheet: feed URL is not configured")

// Row is one data row of the supplier feed. PriceText is kept raw; use
// ParsePrice to turn it into a cost.
type Row struct {
	ExternalID string
	Name       string
	Category   string
	PriceText  string
}

// headerTokens are identifier values that mark a header row rather than a
// data row, compared case-insensitively.
var headerTokens = map[string]bool{
	"codigo": true,
	"código": true,
	"sku":    true,
	"id":     true,
}

// Fetch downloads the feed and returns its data rows. The caller owns the
// retry policy; a non-200 response or transport failure is returned as-is.
func Fetch(ctx context.Context, client *http.Client, url string) ([]Row, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrNoURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %s", resp.Status)
	}

	rows, err := Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return rows, nil
}

// Parse reads CSV rows, skipping header and blank rows (empty identifier or
// name, or an identifier equal to a known column label). Rows with fewer
// than four columns are padded with empty strings.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read feed row: %w", err)
		}

		for len(record) < 4 {
			record = append(record, "")
		}

		row := Row{
			ExternalID: strings.TrimSpace(record[0]),
			Name:       strings.TrimSpace(record[1]),
			Category:   strings.TrimSpace(record[2]),
			PriceText:  strings.TrimSpace(record[3]),
		}
		if row.ExternalID == "" || row.Name == "" {
			continue
		}
		if headerTokens[strings.ToLower(row.ExternalID)] {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var priceCleaner = strings.NewReplacer("$", "", ".", "", " ", "", " ", "")

// ParsePrice converts feed price text into a numeric cost. The feed uses an
// optional currency symbol, "." or space as thousands separator and "," as
// decimal separator ("$ 1.500,50" -> 1500.50). A value that does not parse
// or is not strictly positive is an error; callers treat that as a
// data-quality problem, never a fatal one.
func ParsePrice(text string) (float64, error) {
	clean := priceCleaner.Replace(strings.TrimSpace(text))
	clean = strings.ReplaceAll(clean, ",", ".")
	if clean == "" {
		return 0, fmt.Errorf("empty price text")
	}

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("non-positive price %q", text)
	}
	return v, nil
}

// switch2Tokens must be checked before the plain SWITCH keyword so that
// Switch 2 listings are never classified as Switch 1.
var switch2Tokens = []string{"SWITCH 2", "SWITCH2", "SW 2", "SW2"}

// GuessPlatform maps the feed's free-text category to a console name using
// fixed keyword rules. Unknown categories yield "".
func GuessPlatform(category string) string {
	upper := strings.ToUpper(category)

	switch {
	case strings.Contains(upper, "PS5"):
		return "PS5"
	case strings.Contains(upper, "PS4"):
		return "PS4"
	case strings.Contains(upper, "XBOX"):
		return "Xbox"
	}
	for _, tok := range switch2Tokens {
		if strings.Contains(upper, tok) {
			return "Switch 2"
		}
	}
	if strings.Contains(upper, "SWITCH") || strings.Contains(upper, "SW") {
		return "Switch"
	}
	return ""
}
