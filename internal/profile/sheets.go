package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ashureev/cognify/internal/domain"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrSchemaMismatch is returned when the sheet's header row does not match
// domain.ProfileColumns.
var ErrSchemaMismatch = errors.New("profile sheet header does not match expected columns")

// SheetsSink keeps profiles in a Google Sheets range. Each save reads the
// whole range, appends one row and writes the combined table back, so two
// concurrent writers may lose a row (last writer wins).
type SheetsSink struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	readRange     string
}

// NewSheetsSink builds a sink authenticated with a service-account key file.
// Extra client options (endpoint, HTTP client) are appended after the
// credentials.
func NewSheetsSink(ctx context.Context, spreadsheetID, readRange, credentialsFile string, opts ...option.ClientOption) (*SheetsSink, error) {
	if spreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if readRange == "" {
		return nil, errors.New("sheet range is required")
	}
	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file %s: %w", credentialsFile, err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	clientOpts = append(clientOpts, opts...)

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &SheetsSink{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		readRange:     readRange,
	}, nil
}

// Name implements Sink.
func (s *SheetsSink) Name() string { return "sheets" }

// Save implements Sink.
func (s *SheetsSink) Save(ctx context.Context, rec domain.ProfileRecord) error {
	existing, err := s.values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read profile sheet: %w", err)
	}

	table, err := combine(existing.Values, rec)
	if err != nil {
		return err
	}

	vr := &sheets.ValueRange{Range: s.readRange, MajorDimension: "ROWS", Values: table}
	if _, err := s.values.Update(s.spreadsheetID, s.readRange, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("write profile sheet: %w", err)
	}
	return nil
}

// combine returns header + existing rows + rec. An empty sheet gets a header.
func combine(rows [][]interface{}, rec domain.ProfileRecord) ([][]interface{}, error) {
	if len(rows) == 0 {
		rows = [][]interface{}{toCells(domain.ProfileColumns)}
	} else if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}
	table := make([][]interface{}, 0, len(rows)+1)
	table = append(table, rows...)
	return append(table, toCells(rec.Row())), nil
}

func checkHeader(header []interface{}) error {
	if len(header) != len(domain.ProfileColumns) {
		return fmt.Errorf("%w: got %d columns", ErrSchemaMismatch, len(header))
	}
	for i, want := range domain.ProfileColumns {
		got := strings.ToLower(strings.TrimSpace(fmt.Sprint(header[i])))
		if got != want {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrSchemaMismatch, i+1, got, want)
		}
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
