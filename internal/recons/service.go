package recons

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

// Config names the progress sheet and the zone its timestamps are in.
type Config struct {
	SheetID   string
	SheetName string
	Location  *time.Location
}

// View is the response of a progress request. Failures leave a zero
// Progress and set Error.
type View struct {
	Progress
	Filter    Filter     `json:"filter"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Service derives progress from the sheet.
type Service struct {
	reader Reader
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(reader Reader, cfg Config, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{reader: reader, cfg: cfg, logger: logger, now: time.Now}
}

// Now returns the current time in the configured zone.
func (s *Service) Now() time.Time {
	return s.now().In(s.cfg.Location)
}

// Progress aggregates the records passing f. It never returns an error.
func (s *Service) Progress(ctx context.Context, f Filter) View {
	view := View{Filter: f}
	records, fetchedAt, err := s.load(ctx)
	if err != nil {
		view.Error = userMessage(err)
		view.LastRunLabel = NoRunLabel
		return view
	}
	view.Progress = Compute(records, f, s.cfg.Location)
	view.FetchedAt = &fetchedAt
	return view
}

// Records returns the records passing f with their aggregate.
func (s *Service) Records(ctx context.Context, f Filter) ([]Record, Progress, error) {
	records, _, err := s.load(ctx)
	if err != nil {
		return nil, Progress{}, err
	}
	return Select(records, f), Compute(records, f, s.cfg.Location), nil
}

func (s *Service) load(ctx context.Context) ([]Record, time.Time, error) {
	if s.cfg.SheetID == "" {
		return nil, time.Time{}, errNotConfigured
	}
	table, fetchedAt, err := s.reader.Read(ctx, s.cfg.SheetID, s.cfg.SheetName)
	if err != nil {
		s.logger.Warn("recons progress feed", slog.Any("error", err))
		return nil, time.Time{}, err
	}
	return ToRecords(table, s.cfg.Location), fetchedAt, nil
}

var errNotConfigured = errors.New("recons progress sheet is not configured")

func userMessage(err error) string {
	if errors.Is(err, errNotConfigured) {
		return "Progress sheet is not configured"
	}
	var parseErr *feed.ParseError
	if errors.As(err, &parseErr) {
		return "Sheet returned an unreadable response"
	}
	return "Failed to load"
}
