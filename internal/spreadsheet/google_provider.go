package spreadsheet

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	spreadsheetMimeQuery = "mimeType='application/vnd.google-apps.spreadsheet'"
	spreadsheetFileList  = "files(id, name, createdTime, modifiedTime, owners), nextPageToken"
)

// GoogleProvider implements Provider with the generated Google API clients.
type GoogleProvider struct {
	sheets *sheets.Service
	drive  *drive.Service
}

// NewGoogleProvider builds Sheets and Drive clients from the same options.
func NewGoogleProvider(ctx context.Context, opts ...option.ClientOption) (*GoogleProvider, error) {
	sheetsService, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive client: %w", err)
	}
	return &GoogleProvider{sheets: sheetsService, drive: driveService}, nil
}

func (p *GoogleProvider) CreateSpreadsheet(ctx context.Context, title string) (string, error) {
	created, err := p.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
	}).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.SpreadsheetId, nil
}

func (p *GoogleProvider) GetSpreadsheet(ctx context.Context, spreadsheetID string) (*sheets.Spreadsheet, error) {
	return p.sheets.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
}

func (p *GoogleProvider) BatchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	return p.sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
}

func (p *GoogleProvider) GetValues(ctx context.Context, spreadsheetID, rng string) (*sheets.ValueRange, error) {
	return p.sheets.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
}

func (p *GoogleProvider) UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) (*sheets.UpdateValuesResponse, error) {
	return p.sheets.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
}

func (p *GoogleProvider) AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]any) (*sheets.AppendValuesResponse, error) {
	return p.sheets.Spreadsheets.Values.Append(spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
}

func (p *GoogleProvider) ClearValues(ctx context.Context, spreadsheetID, rng string) error {
	_, err := p.sheets.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (p *GoogleProvider) ListSpreadsheetFiles(ctx context.Context, pageToken string) (*drive.FileList, error) {
	call := p.drive.Files.List().Q(spreadsheetMimeQuery).Fields(spreadsheetFileList).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func (p *GoogleProvider) DeleteFile(ctx context.Context, fileID string) error {
	return p.drive.Files.Delete(fileID).Context(ctx).Do()
}

// HTTPClientSource returns an HTTP client carrying a user's OAuth credentials.
type HTTPClientSource interface {
	Client(ctx context.Context, userID uuid.UUID) (*http.Client, error)
}

// GoogleClientFactory opens a GoogleProvider per user from the user's stored tokens.
type GoogleClientFactory struct {
	clients HTTPClientSource
	opts    []option.ClientOption
}

// NewGoogleClientFactory creates a GoogleClientFactory. Extra options are
// applied to every client, e.g. a custom endpoint in tests.
func NewGoogleClientFactory(clients HTTPClientSource, opts ...option.ClientOption) *GoogleClientFactory {
	return &GoogleClientFactory{clients: clients, opts: opts}
}

// Open hydrates the user's credentials and returns a provider bound to them.
func (f *GoogleClientFactory) Open(ctx context.Context, userID uuid.UUID) (Provider, error) {
	client, err := f.clients.Client(ctx, userID)
	if err != nil {
		return nil, err
	}
	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, f.opts...)
	return NewGoogleProvider(ctx, opts...)
}
