// Package fakeprovider is an in-memory spreadsheet.Provider that records every
// call so tests can assert on the exact payloads sent to Google.
package fakeprovider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"

	"easysheets/internal/a1"
	"easysheets/internal/spreadsheet"
)

// Operation names accepted as keys of Provider.Errs.
const (
	OpCreate       = "create"
	OpGet          = "get"
	OpBatchUpdate  = "batchUpdate"
	OpGetValues    = "getValues"
	OpUpdateValues = "updateValues"
	OpAppendValues = "appendValues"
	OpClearValues  = "clearValues"
	OpListFiles    = "listFiles"
	OpDeleteFile   = "deleteFile"
)

// Batch is one recorded BatchUpdate call.
type Batch struct {
	SpreadsheetID string
	Requests      []*sheets.Request
}

// ValuesCall is one recorded values read, write, append or clear.
type ValuesCall struct {
	SpreadsheetID string
	Range         string
	Values        [][]any
}

// Provider keeps spreadsheets in memory.
type Provider struct {
	mu sync.Mutex

	spreadsheets map[string]*sheets.Spreadsheet
	values       map[string][][]any
	appended     map[string]int64
	nextSheetID  int64
	nextFileID   int

	// FilePages is returned page by page from ListSpreadsheetFiles.
	FilePages [][]*drive.File
	// AppendedRange overrides the computed updatedRange of appends when set.
	AppendedRange *string
	// Errs injects a failure for the named operation.
	Errs map[string]error

	Batches     []Batch
	Reads       []ValuesCall
	Writes      []ValuesCall
	Appends     []ValuesCall
	Clears      []ValuesCall
	Deleted     []string
	PageTokens  []string
	GetCalls    int
	CreateTitle []string
}

// New returns an empty Provider.
func New() *Provider {
	return &Provider{
		spreadsheets: make(map[string]*sheets.Spreadsheet),
		values:       make(map[string][][]any),
		appended:     make(map[string]int64),
		nextSheetID:  1000,
		Errs:         make(map[string]error),
	}
}

// AddSpreadsheet seeds a spreadsheet with the given tabs.
func (p *Provider) AddSpreadsheet(id string, tabs ...*sheets.SheetProperties) *sheets.Spreadsheet {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc := &sheets.Spreadsheet{
		SpreadsheetId: id,
		Properties:    &sheets.SpreadsheetProperties{Title: id},
	}
	for i, props := range tabs {
		if props.Index == 0 {
			props.Index = int64(i)
		}
		doc.Sheets = append(doc.Sheets, &sheets.Sheet{Properties: props})
	}
	p.spreadsheets[id] = doc
	return doc
}

// Tab is a convenience constructor for sheet properties with a grid size.
func Tab(id int64, title string, rows, columns int64) *sheets.SheetProperties {
	return &sheets.SheetProperties{
		SheetId: id,
		Title:   title,
		GridProperties: &sheets.GridProperties{
			RowCount:    rows,
			ColumnCount: columns,
		},
	}
}

// SetValues seeds the grid returned for rng by GetValues.
func (p *Provider) SetValues(rng string, values [][]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[rng] = values
}

// Spreadsheet returns the stored spreadsheet.
func (p *Provider) Spreadsheet(id string) *sheets.Spreadsheet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spreadsheets[id]
}

func (p *Provider) fail(op string) error {
	if err, ok := p.Errs[op]; ok {
		return err
	}
	return nil
}

func notFound() error {
	return &googleapi.Error{Code: http.StatusNotFound, Message: "Requested entity was not found."}
}

func (p *Provider) CreateSpreadsheet(_ context.Context, title string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CreateTitle = append(p.CreateTitle, title)
	if err := p.fail(OpCreate); err != nil {
		return "", err
	}

	p.nextFileID++
	id := fmt.Sprintf("sheet-%d", p.nextFileID)
	p.spreadsheets[id] = &sheets.Spreadsheet{
		SpreadsheetId: id,
		Properties:    &sheets.SpreadsheetProperties{Title: title},
		Sheets:        []*sheets.Sheet{{Properties: Tab(0, "Sheet1", 1000, 26)}},
	}
	return id, nil
}

func (p *Provider) GetSpreadsheet(_ context.Context, spreadsheetID string) (*sheets.Spreadsheet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.GetCalls++
	if err := p.fail(OpGet); err != nil {
		return nil, err
	}
	doc, ok := p.spreadsheets[spreadsheetID]
	if !ok {
		return nil, notFound()
	}
	return doc, nil
}

func (p *Provider) BatchUpdate(_ context.Context, spreadsheetID string, requests []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Batches = append(p.Batches, Batch{SpreadsheetID: spreadsheetID, Requests: requests})
	if err := p.fail(OpBatchUpdate); err != nil {
		return nil, err
	}
	doc, ok := p.spreadsheets[spreadsheetID]
	if !ok {
		return nil, notFound()
	}

	resp := &sheets.BatchUpdateSpreadsheetResponse{SpreadsheetId: spreadsheetID}
	for _, req := range requests {
		resp.Replies = append(resp.Replies, p.apply(doc, req))
	}
	return resp, nil
}

// apply mirrors the structural requests the gateway issues; formatting
// requests are only recorded.
func (p *Provider) apply(doc *sheets.Spreadsheet, req *sheets.Request) *sheets.Response {
	switch {
	case req.AddSheet != nil:
		props := *req.AddSheet.Properties
		if props.SheetId == 0 {
			p.nextSheetID++
			props.SheetId = p.nextSheetID
		}
		props.Index = int64(len(doc.Sheets))
		doc.Sheets = append(doc.Sheets, &sheets.Sheet{Properties: &props})
		return &sheets.Response{AddSheet: &sheets.AddSheetResponse{Properties: &props}}
	case req.DeleteSheet != nil:
		kept := doc.Sheets[:0]
		for _, sheet := range doc.Sheets {
			if sheet.Properties.SheetId != req.DeleteSheet.SheetId {
				kept = append(kept, sheet)
			}
		}
		doc.Sheets = kept
	case req.UpdateSheetProperties != nil:
		for _, sheet := range doc.Sheets {
			if sheet.Properties.SheetId == req.UpdateSheetProperties.Properties.SheetId {
				sheet.Properties.Title = req.UpdateSheetProperties.Properties.Title
			}
		}
	case req.UpdateSpreadsheetProperties != nil:
		doc.Properties.Title = req.UpdateSpreadsheetProperties.Properties.Title
	}
	return &sheets.Response{}
}

func (p *Provider) GetValues(_ context.Context, spreadsheetID, rng string) (*sheets.ValueRange, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Reads = append(p.Reads, ValuesCall{SpreadsheetID: spreadsheetID, Range: rng})
	if err := p.fail(OpGetValues); err != nil {
		return nil, err
	}
	return &sheets.ValueRange{Range: rng, Values: p.values[rng]}, nil
}

func (p *Provider) UpdateValues(_ context.Context, spreadsheetID, rng string, values [][]any) (*sheets.UpdateValuesResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Writes = append(p.Writes, ValuesCall{SpreadsheetID: spreadsheetID, Range: rng, Values: values})
	if err := p.fail(OpUpdateValues); err != nil {
		return nil, err
	}

	var cells int64
	for _, row := range values {
		cells += int64(len(row))
	}
	return &sheets.UpdateValuesResponse{
		SpreadsheetId: spreadsheetID,
		UpdatedRange:  rng,
		UpdatedRows:   int64(len(values)),
		UpdatedCells:  cells,
	}, nil
}

func (p *Provider) AppendValues(_ context.Context, spreadsheetID, rng string, values [][]any) (*sheets.AppendValuesResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Appends = append(p.Appends, ValuesCall{SpreadsheetID: spreadsheetID, Range: rng, Values: values})
	if err := p.fail(OpAppendValues); err != nil {
		return nil, err
	}

	resp := &sheets.AppendValuesResponse{SpreadsheetId: spreadsheetID}
	if p.AppendedRange != nil {
		resp.Updates = &sheets.UpdateValuesResponse{UpdatedRange: *p.AppendedRange}
		return resp, nil
	}
	if len(values) == 0 {
		return resp, nil
	}

	var columns int
	for _, row := range values {
		columns = max(columns, len(row))
	}
	sheetName, _, _ := strings.Cut(rng, "!")
	key := spreadsheetID + "/" + sheetName
	start := p.appended[key] + 1
	end := start + int64(len(values)) - 1
	p.appended[key] = end

	resp.Updates = &sheets.UpdateValuesResponse{
		UpdatedRange: fmt.Sprintf("%s!A%d:%s%d", sheetName, start, a1.ColumnLetters(int64(max(columns, 1)-1)), end),
		UpdatedRows:  int64(len(values)),
	}
	return resp, nil
}

func (p *Provider) ClearValues(_ context.Context, spreadsheetID, rng string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Clears = append(p.Clears, ValuesCall{SpreadsheetID: spreadsheetID, Range: rng})
	return p.fail(OpClearValues)
}

func (p *Provider) ListSpreadsheetFiles(_ context.Context, pageToken string) (*drive.FileList, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.PageTokens = append(p.PageTokens, pageToken)
	if err := p.fail(OpListFiles); err != nil {
		return nil, err
	}

	page := 0
	if pageToken != "" {
		if _, err := fmt.Sscanf(pageToken, "page-%d", &page); err != nil {
			return nil, &googleapi.Error{Code: http.StatusBadRequest, Message: "Invalid page token"}
		}
	}

	list := &drive.FileList{Files: []*drive.File{}}
	if page < len(p.FilePages) {
		list.Files = p.FilePages[page]
	}
	if page+1 < len(p.FilePages) {
		list.NextPageToken = fmt.Sprintf("page-%d", page+1)
	}
	return list, nil
}

func (p *Provider) DeleteFile(_ context.Context, fileID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Deleted = append(p.Deleted, fileID)
	if err := p.fail(OpDeleteFile); err != nil {
		return err
	}
	if _, ok := p.spreadsheets[fileID]; !ok {
		return notFound()
	}
	delete(p.spreadsheets, fileID)
	return nil
}

// Factory hands out the same Provider for every user and records who asked.
type Factory struct {
	Provider *Provider
	Err      error

	mu     sync.Mutex
	Opened []uuid.UUID
}

// NewFactory wraps provider in a Factory.
func NewFactory(provider *Provider) *Factory {
	return &Factory{Provider: provider}
}

// Open implements spreadsheet.ClientFactory.
func (f *Factory) Open(_ context.Context, userID uuid.UUID) (spreadsheet.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Opened = append(f.Opened, userID)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Provider, nil
}
