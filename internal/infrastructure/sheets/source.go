package sheets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kset/verifikator/internal/config"
	"github.com/kset/verifikator/internal/domain"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Source reads the member roster from a Google Sheets range. Columns are
// located by header name so the sheet can be reordered without code changes.
type Source struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
	cols          config.RosterColumns
}

// NewSource builds a Sheets-backed roster source authenticated with a
// service-account key. When cfg.SheetsSubject is set the service account
// impersonates that user (domain-wide delegation).
func NewSource(ctx context.Context, cfg *config.Config) (*Source, error) {
	keyData, err := os.ReadFile(cfg.SheetsKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(keyData, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	if cfg.SheetsSubject != "" {
		jwtCfg.Subject = cfg.SheetsSubject
	}
	svc, err := sheets.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Source{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		readRange:     cfg.SpreadsheetRange,
		cols:          cfg.RosterColumns,
	}, nil
}

// Fetch pulls the configured range and converts it to member records. The
// first row is the header.
func (s *Source) Fetch(ctx context.Context) ([]domain.MemberRecord, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet %s: %w", s.spreadsheetID, err)
	}
	return recordsFromRows(resp.Values, s.cols)
}

// recordsFromRows maps raw sheet values to member records using the header
// row. Rows with no email in either column are skipped; they cannot be
// looked up anyway.
func recordsFromRows(rows [][]interface{}, cols config.RosterColumns) ([]domain.MemberRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("spreadsheet range is empty")
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[strings.TrimSpace(cellString(h))] = i
	}
	for _, required := range []string{cols.OrgEmail, cols.PersonalEmail} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("header row is missing column %q", required)
		}
	}

	records := make([]domain.MemberRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := domain.MemberRecord{
			FullName:         cell(row, idx, cols.FullName),
			Section:          cell(row, idx, cols.Section),
			MembershipStatus: cell(row, idx, cols.MembershipStatus),
			OrgEmail:         cell(row, idx, cols.OrgEmail),
			PersonalEmail:    cell(row, idx, cols.PersonalEmail),
		}
		if domain.NormalizeEmail(rec.OrgEmail) == "" && domain.NormalizeEmail(rec.PersonalEmail) == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func cell(row []interface{}, idx map[string]int, header string) string {
	i, ok := idx[header]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(cellString(row[i]))
}

func cellString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
