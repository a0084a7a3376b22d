package spreadsheet

import (
	"google.golang.org/api/sheets/v4"

	"easysheets/internal/a1"
)

const (
	fieldAlignment = "userEnteredFormat.horizontalAlignment"
	fieldBold      = "userEnteredFormat.textFormat.bold"
)

// gridRange pins the sheet and start indices as explicitly sent fields; the
// generated client would otherwise drop zero values.
func gridRange(sheetID int64, r a1.Range) *sheets.GridRange {
	return &sheets.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    r.StartRow,
		EndRowIndex:      r.EndRow,
		StartColumnIndex: r.StartColumn,
		EndColumnIndex:   r.EndColumn,
		ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
	}
}

func repeatCell(rng *sheets.GridRange, format *sheets.CellFormat, fields string) *sheets.Request {
	return &sheets.Request{
		RepeatCell: &sheets.RepeatCellRequest{
			Range:  rng,
			Cell:   &sheets.CellData{UserEnteredFormat: format},
			Fields: fields,
		},
	}
}

func centerCells(rng *sheets.GridRange) *sheets.Request {
	return repeatCell(rng, &sheets.CellFormat{HorizontalAlignment: "CENTER"}, fieldAlignment)
}

func boldCells(rng *sheets.GridRange) *sheets.Request {
	return repeatCell(rng, &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}}, fieldBold)
}

func boldCenterCells(rng *sheets.GridRange) *sheets.Request {
	return repeatCell(rng, &sheets.CellFormat{
		HorizontalAlignment: "CENTER",
		TextFormat:          &sheets.TextFormat{Bold: true},
	}, fieldBold+","+fieldAlignment)
}

func centerPlainCells(rng *sheets.GridRange) *sheets.Request {
	return repeatCell(rng, &sheets.CellFormat{
		HorizontalAlignment: "CENTER",
		TextFormat:          &sheets.TextFormat{Bold: false, ForceSendFields: []string{"Bold"}},
	}, fieldAlignment+","+fieldBold)
}

func deleteDimension(sheetID int64, dimension string, start, end int64) *sheets.Request {
	return &sheets.Request{
		DeleteDimension: &sheets.DeleteDimensionRequest{
			Range: &sheets.DimensionRange{
				SheetId:         sheetID,
				Dimension:       dimension,
				StartIndex:      start,
				EndIndex:        end,
				ForceSendFields: []string{"SheetId", "StartIndex"},
			},
		},
	}
}
