package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"easysheets/internal/a1"
	"easysheets/internal/spreadsheet"
)

// SheetsHandler exposes the spreadsheet operations under /api/sheets.
type SheetsHandler struct {
	service *spreadsheet.Service
	logger  *slog.Logger
}

// NewSheetsHandler creates a handler.
func NewSheetsHandler(service *spreadsheet.Service, logger *slog.Logger) *SheetsHandler {
	return &SheetsHandler{service: service, logger: logger}
}

// CreateSpreadsheet handles POST /createSpreadSheet.
func (h *SheetsHandler) CreateSpreadsheet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		Title string `json:"title"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	id, err := h.service.CreateSpreadsheet(r.Context(), userID, payload.Title)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"spreadsheetId": id})
}

// RenameSpreadsheet handles POST /{sheetId}/renameSpreadSheet.
func (h *SheetsHandler) RenameSpreadsheet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		NewTitle string `json:"newTitle"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.service.RenameSpreadsheet(r.Context(), userID, spreadsheetID(r), payload.NewTitle); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Spreadsheet renamed successfully",
		"newTitle": payload.NewTitle,
	})
}

// DeleteSpreadsheet handles DELETE /{sheetId}/deleteSpreadSheet.
func (h *SheetsHandler) DeleteSpreadsheet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSpreadsheet(r.Context(), userID, spreadsheetID(r)); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Spreadsheet deleted successfully"})
}

// CreateSheet handles POST /{sheetId}/createSheet and returns the provider's
// batch response as-is.
func (h *SheetsHandler) CreateSheet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.CreateSheetRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	resp, err := h.service.CreateSheet(r.Context(), userID, spreadsheetID(r), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RenameSheet handles POST /{sheetId}/renameSheet.
func (h *SheetsHandler) RenameSheet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.RenameSheetRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.service.RenameSheet(r.Context(), userID, spreadsheetID(r), req); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Sheet renamed successfully",
		"newSheetName": req.NewSheetName,
	})
}

// DeleteSheet handles DELETE /{sheetId}/deleteSheet.
func (h *SheetsHandler) DeleteSheet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		SheetName string `json:"sheetName"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.service.DeleteSheet(r.Context(), userID, spreadsheetID(r), payload.SheetName); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Sheet %s deleted successfully.", payload.SheetName),
	})
}

// ReadSheet handles POST /{sheetId}. The body is optional.
func (h *SheetsHandler) ReadSheet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var payload struct {
		SheetName string `json:"sheetName"`
	}
	if err := decodeJSONBody(w, r, &payload); err != nil {
		writeJSONError(w, err)
		return
	}

	values, err := h.service.ReadSheet(r.Context(), userID, spreadsheetID(r), payload.SheetName)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": values})
}

// Update handles POST /{sheetId}/update.
func (h *SheetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.service.WriteValues, "Data updated and center-aligned successfully")
}

// WriteBoldText handles POST /{sheetId}/writeBoldText.
func (h *SheetsHandler) WriteBoldText(w http.ResponseWriter, r *http.Request) {
	h.write(w, r, h.service.WriteBoldValues, "Data updated and center-aligned and bolded successfully")
}

type writeFunc func(ctx context.Context, userID uuid.UUID, spreadsheetID string, req spreadsheet.WriteRequest) (spreadsheet.WriteResult, error)

func (h *SheetsHandler) write(w http.ResponseWriter, r *http.Request, write writeFunc, message string) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.WriteRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	result, err := write(r.Context(), userID, spreadsheetID(r), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"updatedCells": result.UpdatedCells,
		"message":      message,
	})
}

// MakeTextBold handles POST /{sheetId}/makeTextBold.
func (h *SheetsHandler) MakeTextBold(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.RangeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.service.BoldRange(r.Context(), userID, spreadsheetID(r), req); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Text bolded successfully"})
}

// Append handles POST /{sheetId}/append.
func (h *SheetsHandler) Append(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.AppendRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	result, err := h.service.AppendValues(r.Context(), userID, spreadsheetID(r), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	updatedRange := result.UpdatedRange
	if updatedRange == "" {
		updatedRange = "Unknown"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Data appended successfully",
		"updatedRange": updatedRange,
	})
}

// Clear handles POST /{sheetId}/clear.
func (h *SheetsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.RangeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.service.ClearRange(r.Context(), userID, spreadsheetID(r), req); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Data cleared successfully."})
}

// DeleteRows handles DELETE /{sheetId}/deleteRows.
func (h *SheetsHandler) DeleteRows(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.DeleteRowsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.service.DeleteRows(r.Context(), userID, spreadsheetID(r), req); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Rows deleted successfully"})
}

// DeleteColumn handles DELETE /{sheetId}/deleteColumn.
func (h *SheetsHandler) DeleteColumn(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.DeleteColumnsRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.service.DeleteColumns(r.Context(), userID, spreadsheetID(r), req); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Column deleted successfully"})
}

// ListSheets handles GET /{sheetId}/listSheets.
func (h *SheetsHandler) ListSheets(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	summaries, err := h.service.ListSheets(r.Context(), userID, spreadsheetID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sheets": summaries})
}

// ListSpreadsheets handles GET /listSpreadSheets. Failures use their own
// envelope carrying the provider's message as details.
func (h *SheetsHandler) ListSpreadsheets(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	files, err := h.service.ListSpreadsheets(r.Context(), userID)
	if err != nil {
		h.logger.Error("list spreadsheets", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Failed to retrieve spreadsheets.",
			"details": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "spreadsheets": files})
}

// Metadata handles GET /{sheetId}/metadata.
func (h *SheetsHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	doc, err := h.service.Metadata(r.Context(), userID, spreadsheetID(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "metadata": doc})
}

// Sort handles POST /{sheetId}/sort.
func (h *SheetsHandler) Sort(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.SortRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.service.SortRange(r.Context(), userID, spreadsheetID(r), req); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Sheet sorted successfully"})
}

// Validate handles POST /{sheetId}/validate-format.
func (h *SheetsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req spreadsheet.ValidationRuleRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONError(w, err)
		return
	}

	if err := h.service.ApplyValidation(r.Context(), userID, spreadsheetID(r), req); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Data validation applied successfully"})
}

func (h *SheetsHandler) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		unauthorized(w)
	}
	return userID, ok
}

func spreadsheetID(r *http.Request) string {
	return chi.URLParam(r, "sheetId")
}

// fail maps orchestrator errors onto responses. Provider errors fall through
// to the generic handler with their message intact.
func (h *SheetsHandler) fail(w http.ResponseWriter, err error) {
	var validationErr *spreadsheet.ValidationError
	var parseErr *a1.ParseError
	switch {
	case errors.As(err, &validationErr):
		writeFailure(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &parseErr):
		writeFailure(w, http.StatusBadRequest, "Invalid range format")
	case errors.Is(err, spreadsheet.ErrSheetNotFound):
		writeFailure(w, http.StatusNotFound, "Sheet not found")
	default:
		writeServerError(w, h.logger, err)
	}
}
