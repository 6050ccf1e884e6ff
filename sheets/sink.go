package sheets

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata" // timezone database for minimal images

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/velmie/syncpipe"
)

const (
	defaultRange            = "Sheet1!A1:D1"
	defaultValueInputOption = "RAW"
	defaultTimezone         = "America/Whitehorse"
	majorDimensionRows      = "ROWS"
)

// Config controls where and how rows are appended.
type Config struct {
	SpreadsheetID string
	// Range locates the table to append after. Defaults to Sheet1!A1:D1.
	Range string
	// ValueInputOption is RAW or USER_ENTERED. Defaults to RAW.
	ValueInputOption string
	// Timezone localizes the item request date column. Defaults to America/Whitehorse.
	Timezone string
	Logger   syncpipe.Logger
}

func (c Config) withDefaults() Config {
	if c.Range == "" {
		c.Range = defaultRange
	}
	if c.ValueInputOption == "" {
		c.ValueInputOption = defaultValueInputOption
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Logger == nil {
		c.Logger = syncpipe.NopLogger{}
	}

	return c
}

// Sink implements syncpipe.Sink with spreadsheets.values.append.
type Sink struct {
	values *sheets.SpreadsheetsValuesService
	cfg    Config
	loc    *time.Location
}

var _ syncpipe.Sink = (*Sink)(nil)

// NewSink creates the Sheets API client and the sink.
// Pass option.WithCredentialsFile for service-account credentials.
func NewSink(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Sink, error) {
	if cfg.SpreadsheetID == "" {
		return nil, ErrSpreadsheetRequired
	}
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("syncpipe sheets: create service failed: %w", err)
	}

	return NewSinkFromService(svc, cfg)
}

// NewSinkFromService wraps an existing Sheets service.
func NewSinkFromService(svc *sheets.Service, cfg Config) (*Sink, error) {
	if svc == nil {
		return nil, ErrServiceRequired
	}
	if cfg.SpreadsheetID == "" {
		return nil, ErrSpreadsheetRequired
	}
	cfg = cfg.withDefaults()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("syncpipe sheets: load timezone %q failed: %w", cfg.Timezone, err)
	}

	return &Sink{values: svc.Spreadsheets.Values, cfg: cfg, loc: loc}, nil
}

// Append implements syncpipe.Sink.
func (s *Sink) Append(ctx context.Context, p syncpipe.Payload) error {
	row, err := Row(p, s.loc)
	if err != nil {
		return syncpipe.NewSyncError(syncpipe.KindPayload, err)
	}

	body := &sheets.ValueRange{
		MajorDimension: majorDimensionRows,
		Values:         [][]any{row},
	}
	resp, err := s.values.Append(s.cfg.SpreadsheetID, s.cfg.Range, body).
		ValueInputOption(s.cfg.ValueInputOption).
		Context(ctx).
		Do()
	if err != nil {
		return classify(err)
	}

	var cells int64
	if resp.Updates != nil {
		cells = resp.Updates.UpdatedCells
	}
	s.cfg.Logger.Debug("syncpipe sheets row appended", "id", p.ID, "kind", p.Kind, "updated_cells", cells)

	return nil
}
