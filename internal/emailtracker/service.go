package emailtracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mdmops/console/internal/feed"
)

// Reader returns feed tables, possibly from cache.
type Reader interface {
	Read(ctx context.Context, sheetID, sheetName string) (feed.Table, time.Time, error)
}

// Config names the tracker sheet.
type Config struct {
	SheetID   string
	SheetName string
}

// View is the response of a summary request. Failures leave a zero Summary
// and set Error.
type View struct {
	Summary
	SheetName string     `json:"sheetName,omitempty"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Service builds tracker summaries.
type Service struct {
	reader Reader
	cfg    Config
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(reader Reader, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reader: reader, cfg: cfg, logger: logger}
}

// Summary returns the tracker summary of sheetName, or the configured tab
// when empty. It never returns an error.
func (s *Service) Summary(ctx context.Context, sheetName string) View {
	if sheetName == "" {
		sheetName = s.cfg.SheetName
	}
	view := View{SheetName: sheetName}
	if s.cfg.SheetID == "" {
		view.Error = "Email tracker sheet is not configured"
		return view
	}

	table, fetchedAt, err := s.reader.Read(ctx, s.cfg.SheetID, sheetName)
	if err != nil {
		s.logger.Warn("email tracker feed", slog.String("sheet", sheetName), slog.Any("error", err))
		view.Error = userMessage(err)
		return view
	}
	summary, err := Summarize(table)
	if err != nil {
		view.Error = userMessage(err)
		return view
	}
	view.Summary = summary
	view.FetchedAt = &fetchedAt
	return view
}

func userMessage(err error) string {
	var missing *feed.MissingColumnError
	if errors.As(err, &missing) {
		return "Sheet has no status column"
	}
	var parseErr *feed.ParseError
	if errors.As(err, &parseErr) {
		return "Sheet returned an unreadable response"
	}
	return "Failed to load"
}
