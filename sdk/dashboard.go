package orgscope

import (
	"context"
	"fmt"
	"net/url"

	"github.com/orgscope/orgscope-go/pkg/core"
)

// DashboardService reads the aggregate data panels shown on the dashboard.
type DashboardService struct {
	client *Client
}

// SummaryStats is the headline counters panel.
type SummaryStats struct {
	TotalAssociations int     `json:"total_associations"`
	AIEnhanced        int     `json:"ai_enhanced"`
	WithWebsites      int     `json:"with_websites"`
	RecentDiscoveries int     `json:"recent_discoveries"`
	ActiveWorkflows   int     `json:"active_workflows"`
	TasksExecuted     int     `json:"tasks_executed"`
	AvgExecutionTime  float64 `json:"avg_execution_time"`
	SuccessRate       float64 `json:"success_rate"`
}

// Stats fetches the headline counters.
func (s *DashboardService) Stats(ctx context.Context) (*SummaryStats, error) {
	var stats SummaryStats
	if err := s.client.getJSON(ctx, s.client.endpoint("/api/stats"), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Association is one discovered organisation row.
type Association struct {
	ID                   int     `json:"id"`
	Name                 string  `json:"name"`
	CompanyNumber        string  `json:"company_number,omitempty"`
	Region               string  `json:"region,omitempty"`
	OfficialWebsite      string  `json:"official_website,omitempty"`
	CompanyStatus        string  `json:"company_status,omitempty"`
	OfficersCount        int     `json:"officers_count,omitempty"`
	DigitalMaturityScore float64 `json:"digital_maturity_score,omitempty"`
}

type associationsResponse struct {
	Associations []Association `json:"associations"`
	Total        int           `json:"total"`
	Error        string        `json:"error,omitempty"`
}

// Associations lists recently discovered organisations, newest first.
// region == "" returns all regions; limit <= 0 leaves the page size to the
// backend.
func (s *DashboardService) Associations(ctx context.Context, region string, limit int) ([]Association, int, error) {
	query := url.Values{}
	if region != "" {
		query.Set("region", region)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	endpoint := s.client.endpoint("/api/associations")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var resp associationsResponse
	if err := s.client.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, 0, err
	}
	if resp.Error != "" {
		return nil, 0, core.NewExecutionError(resp.Error)
	}
	return resp.Associations, resp.Total, nil
}

// IndustryDataSource names one upstream registry an industry config queries.
type IndustryDataSource struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// IndustryConfig describes one supported discovery vertical.
type IndustryConfig struct {
	Type           string               `json:"type"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	DataSources    []IndustryDataSource `json:"data_sources"`
	SearchKeywords []string             `json:"search_keywords"`
	OutputFields   []string             `json:"output_fields"`
	CompanyTypes   []string             `json:"company_types,omitempty"`
}

type industryConfigsResponse struct {
	Industries []IndustryConfig `json:"industries"`
	Total      int              `json:"total"`
	Error      string           `json:"error,omitempty"`
}

// IndustryConfigs lists the discovery verticals the backend supports.
func (s *DashboardService) IndustryConfigs(ctx context.Context) ([]IndustryConfig, error) {
	var resp industryConfigsResponse
	if err := s.client.getJSON(ctx, s.client.endpoint("/api/industry-configs"), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, core.NewExecutionError(resp.Error)
	}
	return resp.Industries, nil
}

// MarketIntelligence is free-form analysis produced by discovery runs. The
// backend shapes it per-industry, so it stays a generic map.
type MarketIntelligence map[string]any

type marketIntelligenceResponse struct {
	MarketIntelligence MarketIntelligence `json:"market_intelligence"`
	Error              string             `json:"error,omitempty"`
}

// MarketIntelligence fetches the latest market analysis, or placeholder copy
// when no discovery has run yet.
func (s *DashboardService) MarketIntelligence(ctx context.Context) (MarketIntelligence, error) {
	var resp marketIntelligenceResponse
	if err := s.client.getJSON(ctx, s.client.endpoint("/api/market-intelligence"), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, core.NewExecutionError(resp.Error)
	}
	return resp.MarketIntelligence, nil
}

// DatabaseStats summarises stored organisations for the insights panel.
type DatabaseStats struct {
	TotalAssociations  int `json:"total_associations"`
	WithWebsites       int `json:"with_websites"`
	WithTenantPortals  int `json:"with_tenant_portals"`
	WithOnlineServices int `json:"with_online_services"`
	ActiveFilings      int `json:"active_filings"`
	Regions            int `json:"regions"`
}

// Recommendation is one prioritised action item derived from stored data.
type Recommendation struct {
	Priority       string `json:"priority"`
	Category       string `json:"category"`
	Recommendation string `json:"recommendation"`
	Impact         string `json:"impact"`
}

// InsightsSummary aggregates stored analysis files and database statistics.
type InsightsSummary struct {
	BusinessInsights   map[string]any   `json:"business_insights"`
	MarketIntelligence map[string]any   `json:"market_intelligence"`
	DatabaseStats      *DatabaseStats   `json:"database_stats"`
	Recommendations    []Recommendation `json:"recommendations"`
	Error              string           `json:"error,omitempty"`
}

// InsightsSummary fetches the combined insights panel.
func (s *DashboardService) InsightsSummary(ctx context.Context) (*InsightsSummary, error) {
	var resp InsightsSummary
	if err := s.client.getJSON(ctx, s.client.endpoint("/api/insights-summary"), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, core.NewExecutionError(resp.Error)
	}
	return &resp, nil
}

// RegulatorReturn is one annual regulatory filing row.
type RegulatorReturn struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number"`
	DataSource         string `json:"data_source"`
	StockUnits         int    `json:"stock_units"`
	SatisfactionScore  any    `json:"satisfaction_score"`
	Year               string `json:"year"`
}

// RegulatorReturns is the regulatory filings panel.
type RegulatorReturns struct {
	Returns           []RegulatorReturn `json:"arc_returns"`
	TotalAssociations int               `json:"total_associations"`
	TotalDataSources  int               `json:"total_data_sources"`
	LastUpdated       string            `json:"last_updated"`
	Error             string            `json:"error,omitempty"`
}

// RegulatorReturns fetches annual regulatory filing data.
func (s *DashboardService) RegulatorReturns(ctx context.Context) (*RegulatorReturns, error) {
	var resp RegulatorReturns
	if err := s.client.getJSON(ctx, s.client.endpoint("/api/arc-returns"), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, core.NewExecutionError(resp.Error)
	}
	return &resp, nil
}
