// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the corpus, its tree index and the backend profile as tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/tinkybink/internal/core"
	"github.com/valter-silva-au/tinkybink/internal/observability"
	"github.com/valter-silva-au/tinkybink/pkg/models"
)

// Catalog lists the categories the engine knows.
type Catalog interface {
	Tags() []string
	Info(tag string) (models.CategoryInfo, bool)
}

// ArtifactReader loads the artifacts of the last build.
type ArtifactReader interface {
	ReadRawRecords() ([]map[string]any, error)
	ReadTreeIndex() (*models.TreeIndex, error)
}

// Deps holds the services behind the tools. Artifacts, Metrics and Alerts
// may be nil; the tools that need them then return an error result.
type Deps struct {
	Catalog   Catalog
	Artifacts ArtifactReader
	Profile   models.ProfileConfig
	Metrics   observability.MetricsCalculator
	Alerts    observability.AlertEngine
}

// Server wraps the engine services and exposes them as MCP tools.
type Server struct {
	server *gomcp.Server
	deps   Deps
}

// NewServer creates a new MCP server over deps.
func NewServer(deps Deps, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{deps: deps}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "tinkybink", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listCategoriesInput struct{}

type categoryOutput struct {
	Tag            string  `json:"tag"`
	Instruction    string  `json:"instruction"`
	EmotionLevel   string  `json:"emotion_level"`
	ContentWarning bool    `json:"content_warning"`
	Weight         float64 `json:"weight"`
}

type listCategoriesOutput struct {
	Categories []categoryOutput `json:"categories"`
	Count      int              `json:"count"`
}

type lookupTilesInput struct {
	RawOutput string `json:"raw_output" jsonschema:"required,a four-tile response such as '🍕 Pizza, 🍔 Burger, 🌮 Tacos, 🥗 Salad'"`
}

type lookupTilesOutput struct {
	Tiles    []models.Tile `json:"tiles"`
	Segments int           `json:"segments"`
}

type followUpsInput struct {
	RecordID string `json:"record_id" jsonschema:"required,the record id, e.g. food_ordering_3"`
}

type followUpsOutput struct {
	RecordID  string            `json:"record_id"`
	Layer     int               `json:"layer"`
	FollowUps []models.FollowUp `json:"follow_ups"`
}

type getProfileInput struct{}

type getProfileOutput struct {
	Profile string `json:"profile"`
}

type queryRecordsInput struct {
	Expr  string `json:"expr" jsonschema:"required,a jq expression evaluated once per record"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default 50)"`
}

type queryRecordsOutput struct {
	Results   []any `json:"results"`
	Count     int   `json:"count"`
	Truncated bool  `json:"truncated"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	BuildsStarted     int            `json:"builds_started"`
	BuildsCompleted   int            `json:"builds_completed"`
	BuildsFailed      int            `json:"builds_failed"`
	RecordsAccepted   int            `json:"records_accepted"`
	RejectedInvalid   int            `json:"rejected_invalid"`
	RejectedDuplicate int            `json:"rejected_duplicate"`
	IngestedRecords   int            `json:"ingested_records"`
	EmptyCategories   int            `json:"empty_categories"`
	FailuresByStage   map[string]int `json:"failures_by_stage"`
	LastBuildID       string         `json:"last_build_id,omitempty"`
	EventCount        int            `json:"event_count"`
	OldestEvent       string         `json:"oldest_event,omitempty"`
	NewestEvent       string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

const defaultQueryLimit = 50

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_categories",
		Description: "List every category tag with its instruction, emotion level and content warning flag.",
	}, s.handleListCategories)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "lookup_tiles",
		Description: "Parse a comma-separated response into its emoji and phrase tiles.",
	}, s.handleLookupTiles)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "follow_ups",
		Description: "Return the follow-up references of a record in the last built tree index.",
	}, s.handleFollowUps)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_profile",
		Description: "Render the backend profile (Modelfile) from the current configuration.",
	}, s.handleGetProfile)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "query_records",
		Description: "Run a jq expression over each record of the last built record stream.",
	}, s.handleQueryRecords)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Aggregate build counts, accepted and rejected totals and failures from the event log.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate build health alerts (failed build, high rejection ratio, empty categories, stale corpus).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListCategories(_ context.Context, _ *gomcp.CallToolRequest, _ listCategoriesInput) (*gomcp.CallToolResult, listCategoriesOutput, error) {
	tags := s.deps.Catalog.Tags()
	out := listCategoriesOutput{Categories: make([]categoryOutput, 0, len(tags))}
	for _, tag := range tags {
		info, ok := s.deps.Catalog.Info(tag)
		if !ok {
			continue
		}
		out.Categories = append(out.Categories, categoryOutput{
			Tag:            info.Tag,
			Instruction:    info.Instruction,
			EmotionLevel:   string(info.EmotionLevel),
			ContentWarning: info.ContentWarning,
			Weight:         info.Weight,
		})
	}
	out.Count = len(out.Categories)
	return nil, out, nil
}

func (s *Server) handleLookupTiles(_ context.Context, _ *gomcp.CallToolRequest, input lookupTilesInput) (*gomcp.CallToolResult, lookupTilesOutput, error) {
	if input.RawOutput == "" {
		return errorResult("raw_output is required"), lookupTilesOutput{}, nil
	}
	tiles, n, err := core.ParseTiles(input.RawOutput)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing tiles: %s", err)), lookupTilesOutput{}, nil
	}
	return nil, lookupTilesOutput{Tiles: tiles, Segments: n}, nil
}

func (s *Server) handleFollowUps(_ context.Context, _ *gomcp.CallToolRequest, input followUpsInput) (*gomcp.CallToolResult, followUpsOutput, error) {
	if input.RecordID == "" {
		return errorResult("record_id is required"), followUpsOutput{}, nil
	}
	if s.deps.Artifacts == nil {
		return errorResult("no build artifacts available"), followUpsOutput{}, nil
	}
	idx, err := s.deps.Artifacts.ReadTreeIndex()
	if err != nil {
		return errorResult(fmt.Sprintf("reading tree index: %s", err)), followUpsOutput{}, nil
	}
	node, ok := idx.Node(input.RecordID)
	if !ok {
		return errorResult(fmt.Sprintf("record %s not found in the tree index", input.RecordID)), followUpsOutput{}, nil
	}
	return nil, followUpsOutput{RecordID: node.ID, Layer: node.Layer, FollowUps: node.FollowUps}, nil
}

func (s *Server) handleGetProfile(_ context.Context, _ *gomcp.CallToolRequest, _ getProfileInput) (*gomcp.CallToolResult, getProfileOutput, error) {
	profile, err := core.ComposeProfile(s.deps.Profile)
	if err != nil {
		return errorResult(fmt.Sprintf("composing profile: %s", err)), getProfileOutput{}, nil
	}
	return nil, getProfileOutput{Profile: profile}, nil
}

func (s *Server) handleQueryRecords(ctx context.Context, _ *gomcp.CallToolRequest, input queryRecordsInput) (*gomcp.CallToolResult, queryRecordsOutput, error) {
	if input.Expr == "" {
		return errorResult("expr is required"), queryRecordsOutput{}, nil
	}
	if s.deps.Artifacts == nil {
		return errorResult("no build artifacts available"), queryRecordsOutput{}, nil
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	q, err := core.CompileQuery(input.Expr)
	if err != nil {
		return errorResult(err.Error()), queryRecordsOutput{}, nil
	}
	records, err := s.deps.Artifacts.ReadRawRecords()
	if err != nil {
		return errorResult(fmt.Sprintf("reading records: %s", err)), queryRecordsOutput{}, nil
	}

	out := queryRecordsOutput{Results: []any{}}
	err = q.Run(ctx, records, func(v any) error {
		if len(out.Results) == limit {
			out.Truncated = true
			return core.ErrStopQuery
		}
		out.Results = append(out.Results, v)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return errorResult(err.Error()), queryRecordsOutput{}, nil
	}
	out.Count = len(out.Results)
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	empty := metricsOutput{FailuresByStage: map[string]int{}}
	if s.deps.Metrics == nil {
		return errorResult("metrics calculator not available"), empty, nil
	}
	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	since, err := ParseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), empty, nil
	}
	m, err := s.deps.Metrics.Calculate(since)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), empty, nil
	}

	out := metricsOutput{
		BuildsStarted:     m.BuildsStarted,
		BuildsCompleted:   m.BuildsCompleted,
		BuildsFailed:      m.BuildsFailed,
		RecordsAccepted:   m.RecordsAccepted,
		RejectedInvalid:   m.RejectedInvalid,
		RejectedDuplicate: m.RejectedDuplicate,
		IngestedRecords:   m.IngestedRecords,
		EmptyCategories:   m.EmptyCategories,
		FailuresByStage:   m.FailuresByStage,
		LastBuildID:       m.LastBuildID,
		EventCount:        m.EventCount,
	}
	if m.OldestEvent != nil {
		out.OldestEvent = m.OldestEvent.Format(time.RFC3339)
	}
	if m.NewestEvent != nil {
		out.NewestEvent = m.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.deps.Alerts == nil {
		return errorResult("alert engine not available"), getAlertsOutput{}, nil
	}
	alerts, err := s.deps.Alerts.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}
	out := getAlertsOutput{Alerts: make([]alertOutput, len(alerts)), Count: len(alerts)}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a window such as "7d" or "24h" into the matching
// point in the past.
func ParseSince(s string) (time.Time, error) {
	now := time.Now().UTC()
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}
	suffix := s[len(s)-1]
	var num int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
