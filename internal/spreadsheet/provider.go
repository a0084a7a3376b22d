package spreadsheet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

// Provider is the slice of the Google Sheets and Drive APIs the orchestrator
// needs. Each Provider is bound to a single user's credentials.
type Provider interface {
	CreateSpreadsheet(ctx context.Context, title string) (string, error)
	GetSpreadsheet(ctx context.Context, spreadsheetID string) (*sheets.Spreadsheet, error)
	BatchUpdate(ctx context.Context, spreadsheetID string, requests []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error)
	GetValues(ctx context.Context, spreadsheetID, rng string) (*sheets.ValueRange, error)
	UpdateValues(ctx context.Context, spreadsheetID, rng string, values [][]any) (*sheets.UpdateValuesResponse, error)
	AppendValues(ctx context.Context, spreadsheetID, rng string, values [][]any) (*sheets.AppendValuesResponse, error)
	ClearValues(ctx context.Context, spreadsheetID, rng string) error
	ListSpreadsheetFiles(ctx context.Context, pageToken string) (*drive.FileList, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// ClientFactory opens a Provider authorized as the given user. A fresh
// Provider is built for every call; nothing is shared between users.
type ClientFactory interface {
	Open(ctx context.Context, userID uuid.UUID) (Provider, error)
}

// ErrSheetNotFound is returned when no sheet in the spreadsheet has the requested title.
var ErrSheetNotFound = errors.New("sheet not found")

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// UpstreamError wraps a failure returned by Google. Its message is the
// provider's own message.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}
