package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sigpae-api/internal/dto"
	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
	"github.com/noah-isme/sigpae-api/pkg/export"
)

// Report formats.
const (
	ReportFormatCSV  = "csv"
	ReportFormatPDF  = "pdf"
	ReportFormatXLSX = "xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type exportLister interface {
	ListForExport(ctx context.Context, query dto.RequestQuery, claims *models.JWTClaims, maxRows int) ([]dto.RequestItem, error)
}

type tableRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ReportConfig bounds exports.
type ReportConfig struct {
	MaxRows int
	Title   string
}

// ReportFile is a rendered export.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ReportService renders request listings through the family Reportable adapters.
type ReportService struct {
	requests exportLister
	registry *workflow.Registry
	csv      tableRenderer
	xlsx     tableRenderer
	pdf      pdfRenderer
	cfg      ReportConfig
	now      func() time.Time
	logger   *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(requests exportLister, registry *workflow.Registry, csv, xlsx tableRenderer, pdf pdfRenderer, cfg ReportConfig, logger *zap.Logger) *ReportService {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if cfg.Title == "" {
		cfg.Title = "Solicitações"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{requests: requests, registry: registry, csv: csv, xlsx: xlsx, pdf: pdf, cfg: cfg, now: time.Now, logger: logger}
}

// Export renders the requests matching query in the given format.
func (s *ReportService) Export(ctx context.Context, query dto.RequestQuery, format string, claims *models.JWTClaims) (*ReportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatCSV
	}
	switch format {
	case ReportFormatCSV, ReportFormatPDF, ReportFormatXLSX:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv, xlsx or pdf")
	}

	items, err := s.requests.ListForExport(ctx, query, claims, s.cfg.MaxRows)
	if err != nil {
		return nil, err
	}
	dataset := s.Dataset(query.Variant, items)

	file := &ReportFile{Rows: len(items)}
	stamp := s.now().Format("20060102-150405")
	switch format {
	case ReportFormatPDF:
		file.Data, err = s.pdf.Render(dataset, s.title(query.Variant))
		file.ContentType = "application/pdf"
	case ReportFormatXLSX:
		file.Data, err = s.xlsx.Render(dataset)
		file.ContentType = xlsxContentType
	default:
		file.Data, err = s.csv.Render(dataset)
		file.ContentType = "text/csv; charset=utf-8"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	file.Filename = fmt.Sprintf("solicitacoes-%s.%s", stamp, format)
	s.logger.Info("report exported",
		zap.String("format", format),
		zap.String("variant", query.Variant),
		zap.Int("rows", file.Rows))
	return file, nil
}

// Dataset lays out items with the adapter of variant's family and a priority column.
func (s *ReportService) Dataset(variant string, items []dto.RequestItem) export.Dataset {
	adapter := ReportableFor(s.family(variant))
	headers := append(adapter.Headers(), "Prioridade")
	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		row := adapter.Row(item.Request)
		row["Prioridade"] = string(item.Priority)
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ReportService) family(variant string) workflow.Family {
	if s.registry == nil || variant == "" {
		return ""
	}
	def, ok := s.registry.Get(variant)
	if !ok {
		return ""
	}
	return def.Family()
}

func (s *ReportService) title(variant string) string {
	if variant == "" {
		return s.cfg.Title
	}
	return fmt.Sprintf("%s - %s", s.cfg.Title, strings.ReplaceAll(variant, "_", " "))
}
