package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/edutech-ops/chromebook-helpdesk/internal/domain"
	"github.com/edutech-ops/chromebook-helpdesk/internal/repository"
)

const (
	reportDateLayout = "02/01/2006 15:04"
	reportSheetName  = "Chamados"
	emptyCell        = "-"
)

// ReportColumns is the fixed column order of CSV and XLSX exports.
var ReportColumns = []string{
	"Número",
	"Solicitante",
	"Email",
	"Unidade",
	"Patrimônio",
	"Série",
	"Tipo Problema",
	"Prioridade",
	"Status",
	"Data Abertura",
	"Data Resolução",
	"Responsável",
	"SLA Vencido",
	"Tempo Atendimento (min)",
}

// ReportService aggregates tickets into statistics and exports.
type ReportService struct {
	tickets  repository.TicketRepository
	cache    repository.ReportCache
	cacheTTL time.Duration
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// ReportDependencies bundles collaborators for the report service.
type ReportDependencies struct {
	TicketRepo repository.TicketRepository
	Cache      repository.ReportCache
	CacheTTL   time.Duration
	Location   *time.Location
	Logger     *zap.Logger
	Now        func() time.Time
}

// ProblemTypeCount is one bucket of the problem-type distribution.
type ProblemTypeCount struct {
	Type  domain.ProblemType `json:"type"`
	Count int                `json:"count"`
}

type UnitCount struct {
	Unit  string `json:"unit"`
	Count int    `json:"count"`
}

// SummaryReport holds aggregate ticket statistics.
type SummaryReport struct {
	TotalTickets            int                `json:"totalTickets"`
	OpenTickets             int                `json:"openTickets"`
	ResolvedTickets         int                `json:"resolvedTickets"`
	CancelledTickets        int                `json:"cancelledTickets"`
	ViolatedSLA             int                `json:"violatedSLA"`
	CriticalTickets         int                `json:"criticalTickets"`
	HighTickets             int                `json:"highTickets"`
	MediumTickets           int                `json:"mediumTickets"`
	LowTickets              int                `json:"lowTickets"`
	ProblemTypeDistribution []ProblemTypeCount `json:"problemTypeDistribution"`
	UnitDistribution        []UnitCount        `json:"unitDistribution"`
	AverageResolutionTime   int                `json:"averageResolutionTime"`
	ResolutionRate          float64            `json:"resolutionRate"`
	GeneratedAt             time.Time          `json:"generatedAt"`
}

// Export is a rendered report file.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

func NewReportService(deps ReportDependencies) *ReportService {
	s := &ReportService{
		tickets:  deps.TicketRepo,
		cache:    deps.Cache,
		cacheTTL: deps.CacheTTL,
		location: deps.Location,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Summary returns aggregate statistics, served from cache when fresh.
func (s *ReportService) Summary(ctx context.Context) (*SummaryReport, error) {
	if cached := s.cachedSummary(ctx); cached != nil {
		return cached, nil
	}

	tickets, err := s.tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		s.logger.Error("summary report failed", zap.Error(err))
		return nil, err
	}
	report := Summarize(tickets, s.now())

	if s.cache != nil {
		if payload, err := json.Marshal(report); err == nil {
			if err := s.cache.SetSummary(ctx, payload, s.cacheTTL); err != nil {
				s.logger.Warn("cache summary report", zap.Error(err))
			}
		}
	}
	return report, nil
}

// Summarize computes the summary in a single pass over tickets.
func Summarize(tickets []domain.Ticket, generatedAt time.Time) *SummaryReport {
	report := &SummaryReport{TotalTickets: len(tickets), GeneratedAt: generatedAt}
	byProblem := map[domain.ProblemType]int{}
	byUnit := map[string]int{}
	var minutesSum, minutesCount int

	for i := range tickets {
		t := &tickets[i]
		switch t.Status {
		case domain.TicketStatusOpen:
			report.OpenTickets++
		case domain.TicketStatusResolved:
			report.ResolvedTickets++
		case domain.TicketStatusCancelled:
			report.CancelledTickets++
		}
		switch t.Priority {
		case domain.TicketPriorityCritical:
			report.CriticalTickets++
		case domain.TicketPriorityHigh:
			report.HighTickets++
		case domain.TicketPriorityMedium:
			report.MediumTickets++
		case domain.TicketPriorityLow:
			report.LowTickets++
		}
		if t.SLAViolated && t.Status != domain.TicketStatusResolved {
			report.ViolatedSLA++
		}
		if minutes, ok := countedResolution(t); ok {
			minutesSum += minutes
			minutesCount++
		}
		byProblem[t.ProblemType]++
		byUnit[t.SchoolUnit]++
	}

	report.ProblemTypeDistribution = make([]ProblemTypeCount, 0, len(byProblem))
	for problem, count := range byProblem {
		report.ProblemTypeDistribution = append(report.ProblemTypeDistribution, ProblemTypeCount{Type: problem, Count: count})
	}
	sort.Slice(report.ProblemTypeDistribution, func(i, j int) bool {
		a, b := report.ProblemTypeDistribution[i], report.ProblemTypeDistribution[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Type < b.Type
	})

	report.UnitDistribution = make([]UnitCount, 0, len(byUnit))
	for unit, count := range byUnit {
		report.UnitDistribution = append(report.UnitDistribution, UnitCount{Unit: unit, Count: count})
	}
	sort.Slice(report.UnitDistribution, func(i, j int) bool {
		a, b := report.UnitDistribution[i], report.UnitDistribution[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Unit < b.Unit
	})

	report.AverageResolutionTime = averageMinutes(minutesSum, minutesCount)
	report.ResolutionRate = percentage(report.ResolvedTickets, report.TotalTickets)
	return report
}

// FilteredTickets returns the tickets matched by an export filter.
func (s *ReportService) FilteredTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		s.logger.Error("export query failed", zap.Error(err))
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// ExportCSV renders the filtered tickets with the fixed column set.
func (s *ReportService) ExportCSV(ctx context.Context, filter repository.TicketFilter) (*Export, error) {
	tickets, err := s.FilteredTickets(ctx, filter)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(strings.Join(ReportColumns, ","))
	b.WriteByte('\n')
	for i := range tickets {
		row := s.reportRow(&tickets[i])
		for j, value := range row {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(csvField(value))
		}
		b.WriteByte('\n')
	}

	return &Export{
		Filename:    s.exportFilename("csv"),
		ContentType: "text/csv; charset=utf-8",
		Data:        []byte(b.String()),
	}, nil
}

// ExportXLSX renders the filtered tickets as a spreadsheet.
func (s *ReportService) ExportXLSX(ctx context.Context, filter repository.TicketFilter) (*Export, error) {
	tickets, err := s.FilteredTickets(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(ReportColumns))
	for i, column := range ReportColumns {
		header[i] = column
	}
	if err := f.SetSheetRow(reportSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(ReportColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(reportSheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(reportSheetName, "A", lastCol, 20); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i := range tickets {
		values := s.reportRow(&tickets[i])
		row := make([]interface{}, len(values))
		for j, value := range values {
			row[j] = value
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(reportSheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return &Export{
		Filename:    s.exportFilename("xlsx"),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

// JSONFilename names a JSON export generated now.
func (s *ReportService) JSONFilename() string {
	return s.exportFilename("json")
}

func (s *ReportService) cachedSummary(ctx context.Context) *SummaryReport {
	if s.cache == nil {
		return nil
	}
	payload, ok, err := s.cache.GetSummary(ctx)
	if err != nil {
		s.logger.Warn("read cached summary", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var report SummaryReport
	if err := json.Unmarshal(payload, &report); err != nil {
		s.logger.Warn("decode cached summary", zap.Error(err))
		return nil
	}
	return &report
}

func (s *ReportService) reportRow(t *domain.Ticket) []string {
	violated := "Não"
	if t.SLAViolated {
		violated = "Sim"
	}
	minutes := emptyCell
	if t.ResolutionMinutes != nil && *t.ResolutionMinutes > 0 {
		minutes = strconv.Itoa(*t.ResolutionMinutes)
	}
	return []string{
		t.Number,
		t.Requester,
		stringOrEmpty(t.Email),
		t.SchoolUnit,
		t.AssetTag,
		stringOrEmpty(t.SerialNumber),
		string(t.ProblemType),
		string(t.Priority),
		string(t.Status),
		s.formatDate(&t.OpenedAt),
		s.formatDate(t.ResolvedAt),
		stringOrEmpty(t.Responsible),
		violated,
		minutes,
	}
}

func (s *ReportService) formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return emptyCell
	}
	return t.In(s.location).Format(reportDateLayout)
}

func (s *ReportService) exportFilename(ext string) string {
	return fmt.Sprintf("relatorio_chamados_%s.%s", s.now().In(s.location).Format("2006-01-02"), ext)
}

// csvField quotes values containing a comma, doubling embedded quotes.
func csvField(value string) string {
	if !strings.Contains(value, ",") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func stringOrEmpty(val *string) string {
	if val == nil || *val == "" {
		return emptyCell
	}
	return *val
}
