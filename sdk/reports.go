package orgscope

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/orgscope/orgscope-go/pkg/core"
)

// ReportsService lists and previews generated report files.
type ReportsService struct {
	client *Client
}

// ReportFile describes one generated output file.
type ReportFile struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	Type     string `json:"type"`
}

// ReportCatalog groups generated files by category.
type ReportCatalog struct {
	DataFiles          []ReportFile `json:"data_files"`
	Reports            []ReportFile `json:"reports"`
	LeagueTables       []ReportFile `json:"league_tables"`
	MarketIntelligence []ReportFile `json:"market_intelligence"`
	BusinessInsights   []ReportFile `json:"business_insights"`
	Error              string       `json:"error,omitempty"`
}

// List fetches the catalog of generated report files.
func (s *ReportsService) List(ctx context.Context) (*ReportCatalog, error) {
	var catalog ReportCatalog
	if err := s.client.getJSON(ctx, s.client.endpoint("/api/reports"), &catalog); err != nil {
		return nil, err
	}
	if catalog.Error != "" {
		return nil, core.NewExecutionError(catalog.Error)
	}
	return &catalog, nil
}

// Report content types returned by Content.
const (
	ReportTypeJSON = "json"
	ReportTypeCSV  = "csv"
	ReportTypeHTML = "html"
)

// ReportContent is a preview of one report file. Type selects which fields
// are populated: JSON sets Content (raw JSON), CSV sets Headers and Rows,
// HTML sets HTML.
type ReportContent struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`

	// JSON reports.
	Content json.RawMessage `json:"-"`

	// CSV previews, truncated server-side.
	Headers      []string            `json:"headers,omitempty"`
	Rows         []map[string]string `json:"rows,omitempty"`
	TotalRows    int                 `json:"total_rows,omitempty"`
	PreviewLimit int                 `json:"preview_limit,omitempty"`

	// Rendered HTML tables.
	HTML string `json:"-"`
}

// reportContentWire splits the polymorphic "content" field: JSON reports put
// an object there, HTML reports a string.
type reportContentWire struct {
	Type         string              `json:"type"`
	Filename     string              `json:"filename"`
	Content      json.RawMessage     `json:"content"`
	Headers      []string            `json:"headers"`
	Rows         []map[string]string `json:"rows"`
	TotalRows    int                 `json:"total_rows"`
	PreviewLimit int                 `json:"preview_limit"`
	Error        string              `json:"error,omitempty"`
}

// Content previews a single report file by name.
func (s *ReportsService) Content(ctx context.Context, filename string) (*ReportContent, error) {
	if filename == "" {
		return nil, core.NewInvalidRequestError("filename must not be empty")
	}

	var wire reportContentWire
	endpoint := s.client.endpoint("/api/view-report/" + url.PathEscape(filename))
	if err := s.client.getJSON(ctx, endpoint, &wire); err != nil {
		return nil, err
	}
	if wire.Error != "" {
		return nil, core.NewExecutionError(wire.Error)
	}

	rc := &ReportContent{
		Type:         wire.Type,
		Filename:     wire.Filename,
		Headers:      wire.Headers,
		Rows:         wire.Rows,
		TotalRows:    wire.TotalRows,
		PreviewLimit: wire.PreviewLimit,
	}
	switch wire.Type {
	case ReportTypeJSON:
		rc.Content = wire.Content
	case ReportTypeHTML:
		if err := json.Unmarshal(wire.Content, &rc.HTML); err != nil {
			return nil, core.NewParseError("view-report html content", err)
		}
	}
	return rc, nil
}
