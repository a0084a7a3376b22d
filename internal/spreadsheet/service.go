// Package spreadsheet turns simple REST-style sheet operations into Google
// Sheets and Drive API calls made with the calling user's credentials.
package spreadsheet

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"

	"easysheets/internal/a1"
)

const (
	defaultSpreadsheetTitle = "New SpreadSheet"
	defaultSheetName        = "Sheet1"
	readColumns             = "A1:Z"
)

// Options tune orchestrator behaviour.
type Options struct {
	// SortExcludesHeader keeps row 1 out of sort ranges unless a request says otherwise.
	SortExcludesHeader bool
}

// Service runs sheet operations. Every method opens a provider for the calling
// user, validates input, resolves sheet titles, then issues the API calls.
type Service struct {
	clients ClientFactory
	opts    Options
	logger  *slog.Logger
}

// NewService creates a Service.
func NewService(clients ClientFactory, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{clients: clients, opts: opts, logger: logger}
}

// CreateSheetRequest adds a tab. Options are merged over the sheet properties.
type CreateSheetRequest struct {
	SheetName string         `json:"sheetName"`
	Options   map[string]any `json:"options"`
}

// RenameSheetRequest renames the tab titled SheetName.
type RenameSheetRequest struct {
	SheetName    string `json:"sheetName"`
	NewSheetName string `json:"newSheetName"`
}

// WriteRequest overwrites Range on SheetName with a grid of values.
type WriteRequest struct {
	SheetName string `json:"sheetName"`
	Range     string `json:"range"`
	Values    any    `json:"values"`
}

// RangeRequest addresses an A1 range on a named sheet.
type RangeRequest struct {
	SheetName string `json:"sheetName"`
	Range     string `json:"range"`
}

// AppendRequest appends rows after the last used row of SheetName.
type AppendRequest struct {
	SheetName string `json:"sheetName"`
	Values    any    `json:"values"`
}

// DeleteRowsRequest removes 1-based rows StartRow through EndRow inclusive.
type DeleteRowsRequest struct {
	SheetName string `json:"sheetName"`
	StartRow  *int64 `json:"startRow"`
	EndRow    *int64 `json:"endRow"`
}

// DeleteColumnsRequest removes a column span. Bounds are column letters or
// 1-based column numbers.
type DeleteColumnsRequest struct {
	SheetName   string `json:"sheetName"`
	StartColumn any    `json:"startColumn"`
	EndColumn   any    `json:"endColumn"`
}

// SortRequest sorts a sheet by the column named in SortColumnIndex (a letter).
type SortRequest struct {
	SheetName       string `json:"sheetName"`
	SortColumnIndex string `json:"sortColumnIndex"`
	Order           string `json:"order"`
	HasHeader       *bool  `json:"hasHeader,omitempty"`
}

// ValidationRuleRequest installs a data validation rule on explicit 0-based bounds.
type ValidationRuleRequest struct {
	SheetName      string         `json:"sheetName"`
	Range          *a1.Range      `json:"range"`
	ValidationType string         `json:"validationType"`
	Criteria       map[string]any `json:"criteria"`
}

// WriteResult reports the number of cells a write touched.
type WriteResult struct {
	UpdatedCells int64
}

// AppendResult reports where appended rows landed. UpdatedRange is empty when
// the provider did not say.
type AppendResult struct {
	UpdatedRange string
}

// SheetSummary is the per-tab metadata returned by ListSheets.
type SheetSummary struct {
	Title             string `json:"title"`
	SheetID           int64  `json:"sheetId"`
	RowCount          int64  `json:"rowCount"`
	ColumnCount       int64  `json:"columnCount"`
	FrozenRowCount    int64  `json:"frozenRowCount"`
	FrozenColumnCount int64  `json:"frozenColumnCount"`
	Hidden            bool   `json:"hidden"`
	Index             int64  `json:"index"`
}

// CreateSpreadsheet creates a spreadsheet and returns its id.
func (s *Service) CreateSpreadsheet(ctx context.Context, userID uuid.UUID, title string) (string, error) {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(title) == "" {
		title = defaultSpreadsheetTitle
	}

	id, err := provider.CreateSpreadsheet(ctx, title)
	if err != nil {
		return "", upstream("spreadsheets.create", err)
	}
	return id, nil
}

// RenameSpreadsheet sets the spreadsheet title.
func (s *Service) RenameSpreadsheet(ctx context.Context, userID uuid.UUID, spreadsheetID, newTitle string) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}

	if newTitle == "" {
		return invalid("newTitle is required.")
	}

	return s.batch(ctx, provider, spreadsheetID, &sheets.Request{
		UpdateSpreadsheetProperties: &sheets.UpdateSpreadsheetPropertiesRequest{
			Properties: &sheets.SpreadsheetProperties{Title: newTitle},
			Fields:     "title",
		},
	})
}

// DeleteSpreadsheet removes the spreadsheet file from Drive.
func (s *Service) DeleteSpreadsheet(ctx context.Context, userID uuid.UUID, spreadsheetID string) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}
	return upstream("files.delete", provider.DeleteFile(ctx, spreadsheetID))
}

// CreateSheet adds a tab and returns the provider's batch response.
func (s *Service) CreateSheet(ctx context.Context, userID uuid.UUID, spreadsheetID string, req CreateSheetRequest) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.SheetName == "" {
		return nil, invalid("sheetName is required.")
	}

	props, err := sheetProperties(req.SheetName, req.Options)
	if err != nil {
		return nil, err
	}

	resp, err := provider.BatchUpdate(ctx, spreadsheetID, []*sheets.Request{
		{AddSheet: &sheets.AddSheetRequest{Properties: props}},
	})
	if err != nil {
		return nil, upstream("spreadsheets.batchUpdate", err)
	}
	return resp, nil
}

// sheetProperties overlays caller options on the new sheet's properties. A
// title inside options wins over sheetName.
func sheetProperties(sheetName string, options map[string]any) (*sheets.SheetProperties, error) {
	props := &sheets.SheetProperties{}
	if len(options) > 0 {
		raw, err := json.Marshal(options)
		if err != nil {
			return nil, invalid("options must be an object")
		}
		if err := json.Unmarshal(raw, props); err != nil {
			return nil, invalid("invalid sheet options: %v", err)
		}
	}
	if props.Title == "" {
		props.Title = sheetName
	}
	return props, nil
}

// RenameSheet renames the tab titled req.SheetName.
func (s *Service) RenameSheet(ctx context.Context, userID uuid.UUID, spreadsheetID string, req RenameSheetRequest) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}

	if req.SheetName == "" || req.NewSheetName == "" {
		return invalid("Both sheetName and newSheetName are required")
	}

	sheet, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, req.SheetName)
	if err != nil {
		return err
	}

	return s.batch(ctx, provider, spreadsheetID, &sheets.Request{
		UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId:         sheet.SheetId,
				Title:           req.NewSheetName,
				ForceSendFields: []string{"SheetId"},
			},
			Fields: "title",
		},
	})
}

// DeleteSheet removes the tab titled sheetName.
func (s *Service) DeleteSheet(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}

	if sheetName == "" {
		return invalid("sheetName required")
	}

	sheet, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, sheetName)
	if err != nil {
		return err
	}

	return s.batch(ctx, provider, spreadsheetID, &sheets.Request{
		DeleteSheet: &sheets.DeleteSheetRequest{SheetId: sheet.SheetId, ForceSendFields: []string{"SheetId"}},
	})
}

// ReadSheet returns the values in columns A through Z of the named sheet,
// defaulting to Sheet1.
func (s *Service) ReadSheet(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) ([][]any, error) {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sheetName == "" {
		sheetName = defaultSheetName
	}

	if _, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, sheetName); err != nil {
		return nil, err
	}

	values, err := provider.GetValues(ctx, spreadsheetID, a1.Qualified(sheetName, readColumns))
	if err != nil {
		return nil, upstream("values.get", err)
	}
	if values == nil || values.Values == nil {
		return [][]any{}, nil
	}
	return values.Values, nil
}

// WriteValues overwrites the range and centers it.
func (s *Service) WriteValues(ctx context.Context, userID uuid.UUID, spreadsheetID string, req WriteRequest) (WriteResult, error) {
	return s.write(ctx, userID, spreadsheetID, req, centerCells)
}

// WriteBoldValues overwrites the range, then bolds and centers it.
func (s *Service) WriteBoldValues(ctx context.Context, userID uuid.UUID, spreadsheetID string, req WriteRequest) (WriteResult, error) {
	return s.write(ctx, userID, spreadsheetID, req, boldCenterCells)
}

func (s *Service) write(ctx context.Context, userID uuid.UUID, spreadsheetID string, req WriteRequest, format func(*sheets.GridRange) *sheets.Request) (WriteResult, error) {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return WriteResult{}, err
	}

	values, ok := grid(req.Values)
	if req.SheetName == "" || req.Range == "" || !ok {
		return WriteResult{}, invalid("sheetName, range, and values are required, and values must be an array")
	}
	bounds, err := parseRange(req.Range)
	if err != nil {
		return WriteResult{}, err
	}

	sheet, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, req.SheetName)
	if err != nil {
		return WriteResult{}, err
	}

	updated, err := provider.UpdateValues(ctx, spreadsheetID, a1.Qualified(req.SheetName, req.Range), values)
	if err != nil {
		return WriteResult{}, upstream("values.update", err)
	}

	if err := s.batch(ctx, provider, spreadsheetID, format(gridRange(sheet.SheetId, bounds))); err != nil {
		return WriteResult{}, err
	}

	var cells int64
	if updated != nil {
		cells = updated.UpdatedCells
	}
	return WriteResult{UpdatedCells: cells}, nil
}

// BoldRange bolds existing cells without touching their values. Repeating the
// call leaves the same formatting.
func (s *Service) BoldRange(ctx context.Context, userID uuid.UUID, spreadsheetID string, req RangeRequest) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}

	if req.SheetName == "" || req.Range == "" {
		return invalid("sheetName and range are required")
	}
	bounds, err := parseRange(req.Range)
	if err != nil {
		return err
	}

	sheet, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, req.SheetName)
	if err != nil {
		return err
	}

	return s.batch(ctx, provider, spreadsheetID, boldCells(gridRange(sheet.SheetId, bounds)))
}

// AppendValues appends rows after the last used row, then centers and un-bolds
// the rows the provider reports as written.
func (s *Service) AppendValues(ctx context.Context, userID uuid.UUID, spreadsheetID string, req AppendRequest) (AppendResult, error) {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return AppendResult{}, err
	}

	if req.SheetName == "" {
		return AppendResult{}, invalid("sheetName is required.")
	}
	values, ok := grid(req.Values)
	if !ok {
		return AppendResult{}, invalid("value must be an array of arrays")
	}

	sheet, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, req.SheetName)
	if err != nil {
		return AppendResult{}, err
	}

	appended, err := provider.AppendValues(ctx, spreadsheetID, a1.Qualified(req.SheetName, "A1"), values)
	if err != nil {
		return AppendResult{}, upstream("values.append", err)
	}

	var updatedRange string
	if appended != nil && appended.Updates != nil {
		updatedRange = appended.Updates.UpdatedRange
	}

	target := a1.Unqualified(updatedRange)
	if target == "" {
		target = "A1"
	}
	bounds, err := parseRange(target)
	if err != nil {
		return AppendResult{}, err
	}

	if err := s.batch(ctx, provider, spreadsheetID, centerPlainCells(gridRange(sheet.SheetId, bounds))); err != nil {
		return AppendResult{}, err
	}
	return AppendResult{UpdatedRange: updatedRange}, nil
}

// ClearRange clears cell contents in a bare A1 range, keeping formatting.
func (s *Service) ClearRange(ctx context.Context, userID uuid.UUID, spreadsheetID string, req RangeRequest) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}

	if req.SheetName == "" || req.Range == "" {
		return invalid("sheetName and range are required.")
	}
	if !a1.IsCellRange(req.Range) {
		return invalid("Invalid range format.")
	}

	if _, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, req.SheetName); err != nil {
		return err
	}

	return upstream("values.clear", provider.ClearValues(ctx, spreadsheetID, a1.Qualified(req.SheetName, req.Range)))
}

// DeleteRows removes rows StartRow..EndRow (1-based, inclusive).
func (s *Service) DeleteRows(ctx context.Context, userID uuid.UUID, spreadsheetID string, req DeleteRowsRequest) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}

	if req.SheetName == "" || req.StartRow == nil || req.EndRow == nil {
		return invalid("sheetName, startRow, and endRow are required")
	}
	start, end := *req.StartRow, *req.EndRow
	if start < 1 || end < start {
		return invalid("startRow must be at least 1 and endRow must not precede startRow")
	}

	sheet, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, req.SheetName)
	if err != nil {
		return err
	}

	return s.batch(ctx, provider, spreadsheetID, deleteDimension(sheet.SheetId, "ROWS", start-1, end))
}

// DeleteColumns removes the column span StartColumn..EndColumn inclusive.
func (s *Service) DeleteColumns(ctx context.Context, userID uuid.UUID, spreadsheetID string, req DeleteColumnsRequest) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}

	if req.SheetName == "" || req.StartColumn == nil || req.EndColumn == nil {
		return invalid("sheetName, startColumn and endColumn are required")
	}
	start, err := columnBound(req.StartColumn)
	if err != nil {
		return err
	}
	end, err := columnBound(req.EndColumn)
	if err != nil {
		return err
	}
	if end < start {
		return invalid("endColumn must not precede startColumn")
	}

	sheet, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, req.SheetName)
	if err != nil {
		return err
	}

	return s.batch(ctx, provider, spreadsheetID, deleteDimension(sheet.SheetId, "COLUMNS", start, end+1))
}

// columnBound converts a column letter or 1-based column number into a
// 0-based index.
func columnBound(v any) (int64, error) {
	var text string
	switch value := v.(type) {
	case float64:
		if value != float64(int64(value)) {
			return 0, invalid("column %v is not a whole number", value)
		}
		text = strconv.FormatInt(int64(value), 10)
	case json.Number:
		text = value.String()
	case string:
		text = strings.TrimSpace(value)
	default:
		return 0, invalid("column must be a letter or a number")
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		if n < 1 {
			return 0, invalid("column %d must be at least 1", n)
		}
		return n - 1, nil
	}

	index, err := a1.ColumnIndex(strings.ToUpper(text))
	if err != nil {
		return 0, invalid("invalid column %q", text)
	}
	return index, nil
}

// ListSheets summarises every tab of the spreadsheet.
func (s *Service) ListSheets(ctx context.Context, userID uuid.UUID, spreadsheetID string) ([]SheetSummary, error) {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return nil, err
	}

	meta, err := newSheetLookup(provider, spreadsheetID).metadata(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]SheetSummary, 0, len(meta.Sheets))
	for _, sheet := range meta.Sheets {
		if sheet == nil || sheet.Properties == nil {
			continue
		}
		props := sheet.Properties
		summary := SheetSummary{
			Title:   props.Title,
			SheetID: props.SheetId,
			Hidden:  props.Hidden,
			Index:   props.Index,
		}
		if gp := props.GridProperties; gp != nil {
			summary.RowCount = gp.RowCount
			summary.ColumnCount = gp.ColumnCount
			summary.FrozenRowCount = gp.FrozenRowCount
			summary.FrozenColumnCount = gp.FrozenColumnCount
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListSpreadsheets pages through every spreadsheet file the user can see.
func (s *Service) ListSpreadsheets(ctx context.Context, userID uuid.UUID) ([]*drive.File, error) {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return nil, err
	}

	files := []*drive.File{}
	pageToken := ""
	for {
		page, err := provider.ListSpreadsheetFiles(ctx, pageToken)
		if err != nil {
			return nil, upstream("files.list", err)
		}
		files = append(files, page.Files...)
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

// Metadata returns the full spreadsheet resource.
func (s *Service) Metadata(ctx context.Context, userID uuid.UUID, spreadsheetID string) (*sheets.Spreadsheet, error) {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newSheetLookup(provider, spreadsheetID).metadata(ctx)
}

// SortRange sorts every column of the sheet by one column. Row 1 is held out
// as a header when the request or the service default says so.
func (s *Service) SortRange(ctx context.Context, userID uuid.UUID, spreadsheetID string, req SortRequest) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}

	if req.SheetName == "" || req.SortColumnIndex == "" || req.Order == "" {
		return invalid("sheetName, sortColumnIndex and order are required.")
	}
	column, err := a1.ColumnIndex(req.SortColumnIndex)
	if err != nil {
		return invalid("invalid sortColumnIndex %q", req.SortColumnIndex)
	}

	order := "ASCENDING"
	if req.Order == "DESCENDING" {
		order = "DESCENDING"
	}

	excludeHeader := s.opts.SortExcludesHeader
	if req.HasHeader != nil {
		excludeHeader = *req.HasHeader
	}
	var startRow int64
	if excludeHeader {
		startRow = 1
	}

	sheet, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, req.SheetName)
	if err != nil {
		return err
	}

	var columnCount int64
	if sheet.GridProperties != nil {
		columnCount = sheet.GridProperties.ColumnCount
	}

	return s.batch(ctx, provider, spreadsheetID, &sheets.Request{
		SortRange: &sheets.SortRangeRequest{
			Range: &sheets.GridRange{
				SheetId:          sheet.SheetId,
				StartRowIndex:    startRow,
				StartColumnIndex: 0,
				EndColumnIndex:   columnCount,
				ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
			},
			SortSpecs: []*sheets.SortSpec{
				{DimensionIndex: column, SortOrder: order, ForceSendFields: []string{"DimensionIndex"}},
			},
		},
	})
}

var validationCriteria = map[string]string{
	"NUMBER_GREATER_THAN": "minValue",
	"NUMBER_LESS_THAN":    "maxValue",
	"TEXT_EQUALS":         "text",
	"DATE_BEFORE":         "date",
}

// ApplyValidation installs a data validation rule with a custom UI.
func (s *Service) ApplyValidation(ctx context.Context, userID uuid.UUID, spreadsheetID string, req ValidationRuleRequest) error {
	provider, err := s.clients.Open(ctx, userID)
	if err != nil {
		return err
	}

	if req.SheetName == "" || req.Range == nil {
		return invalid("sheetName and range are required")
	}
	if r := req.Range; r.StartRow < 0 || r.StartColumn < 0 || r.EndRow <= r.StartRow || r.EndColumn <= r.StartColumn {
		return invalid("range bounds must be non-negative and end after start")
	}
	key, ok := validationCriteria[req.ValidationType]
	if !ok {
		return invalid("Invalid validation type")
	}
	value, ok := criterion(req.Criteria, key)
	if !ok {
		return invalid("criteria.%s is required", key)
	}

	sheet, err := newSheetLookup(provider, spreadsheetID).byTitle(ctx, req.SheetName)
	if err != nil {
		return err
	}

	return s.batch(ctx, provider, spreadsheetID, &sheets.Request{
		SetDataValidation: &sheets.SetDataValidationRequest{
			Range: gridRange(sheet.SheetId, *req.Range),
			Rule: &sheets.DataValidationRule{
				Condition: &sheets.BooleanCondition{
					Type:   req.ValidationType,
					Values: []*sheets.ConditionValue{{UserEnteredValue: value}},
				},
				ShowCustomUi: true,
			},
		},
	})
}

func criterion(criteria map[string]any, key string) (string, bool) {
	raw, ok := criteria[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return fmt.Sprint(v), true
	}
}

func (s *Service) batch(ctx context.Context, provider Provider, spreadsheetID string, requests ...*sheets.Request) error {
	s.logger.DebugContext(ctx, "sheets batch update", "spreadsheet_id", spreadsheetID, "requests", len(requests))
	if _, err := provider.BatchUpdate(ctx, spreadsheetID, requests); err != nil {
		return upstream("spreadsheets.batchUpdate", err)
	}
	return nil
}

// grid accepts a decoded JSON array of arrays.
func grid(v any) ([][]any, bool) {
	switch rows := v.(type) {
	case [][]any:
		return rows, true
	case []any:
		out := make([][]any, 0, len(rows))
		for _, row := range rows {
			cells, ok := row.([]any)
			if !ok {
				return nil, false
			}
			out = append(out, cells)
		}
		return out, true
	default:
		return nil, false
	}
}

func parseRange(text string) (a1.Range, error) {
	bounds, err := a1.Parse(text)
	if err != nil {
		return a1.Range{}, invalid("Invalid range format")
	}
	return bounds, nil
}
