package spreadsheet

import (
	"context"

	"google.golang.org/api/sheets/v4"
)

// sheetLookup resolves sheet titles against one spreadsheet. Metadata is
// fetched at most once per lookup, which lives for a single operation.
type sheetLookup struct {
	provider      Provider
	spreadsheetID string
	meta          *sheets.Spreadsheet
}

func newSheetLookup(provider Provider, spreadsheetID string) *sheetLookup {
	return &sheetLookup{provider: provider, spreadsheetID: spreadsheetID}
}

func (l *sheetLookup) metadata(ctx context.Context) (*sheets.Spreadsheet, error) {
	if l.meta != nil {
		return l.meta, nil
	}
	meta, err := l.provider.GetSpreadsheet(ctx, l.spreadsheetID)
	if err != nil {
		return nil, upstream("spreadsheets.get", err)
	}
	l.meta = meta
	return meta, nil
}

// byTitle scans the sheet list for an exact title match.
func (l *sheetLookup) byTitle(ctx context.Context, title string) (*sheets.SheetProperties, error) {
	meta, err := l.metadata(ctx)
	if err != nil {
		return nil, err
	}
	for _, sheet := range meta.Sheets {
		if sheet != nil && sheet.Properties != nil && sheet.Properties.Title == title {
			return sheet.Properties, nil
		}
	}
	return nil, ErrSheetNotFound
}
