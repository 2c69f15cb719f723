/*
handlers.go - HTTP API handlers for the box-office accounting engine

PURPOSE:
  Exposes the accounting engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the accounting services.

ENDPOINTS:
  Settings:
    GET    /api/settings                       Read all business settings
    PUT    /api/settings                       Partial update (atomic)

  Speelweken:
    POST   /api/speelweken                     Resolve (get or create) the week of a date
    GET    /api/speelweken/current             Date range of this week
    PUT    /api/speelweken/{id}/number         Correct a week number

  Sales:
    POST   /api/imports                        Import one day of POS rows (JSON)
    POST   /api/imports/csv?date=&source=      Import one day of POS export (CSV body)
    PUT    /api/sales                          Correct a stored row

  Reports:
    GET    /api/history?from=&to=              Stored days with totals
    GET    /api/statements?from=&to=           All statements of a period
    GET    /api/statements/{week}/{film}/{room} One statement
    GET    /api/tickets/audit?film=&room=      Ticket numbering drift

  Scenarios:
    GET    /api/scenarios                      List demo scenarios
    POST   /api/scenarios/load                 Load a demo scenario

ARCHITECTURE:
  Handler holds the accounting.Engine; every service is reached through it.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator/v10 tags on request DTOs)
  3. Call the accounting service
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Week/film/room/row not found, no sales for a statement
  - 409: Week number already in use, duplicate key
  - 500: Storage and internal errors

SECURITY NOTE:
  No authentication or authorization. Run behind a trusted network.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cinemacentral/borderel/accounting"
	"github.com/cinemacentral/borderel/logger"
	"github.com/cinemacentral/borderel/posexport"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *accounting.Engine

	// Now returns the current time; replaced in tests.
	Now func() time.Time

	validate *validator.Validate
	log      zerolog.Logger

	// Track currently loaded scenario
	scenarioMu      sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler around an engine.
func NewHandler(engine *accounting.Engine) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	// "amount" accepts what parseMoney accepts: "12,50", "1.234,50", "€ 9".
	v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := parseMoney(fl.Field().String())
		return err == nil
	})
	return &Handler{
		Engine:   engine,
		Now:      time.Now,
		validate: v,
		log:      logger.WithComponent("api"),
	}
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns every business setting.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Engine.Settings.Snapshot(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to read settings", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSettingsDTO(snap))
}

// UpdateSettings applies a partial update. Nothing is written when any
// field is invalid.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req accounting.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if err := h.Engine.Settings.Update(r.Context(), req); err != nil {
		h.writeDomainError(w, "Failed to update settings", err)
		return
	}
	h.GetSettings(w, r)
}

// =============================================================================
// SPEELWEEK HANDLERS
// =============================================================================

// ResolveWeek returns the speelweek of a date, creating it when needed.
func (h *Handler) ResolveWeek(w http.ResponseWriter, r *http.Request) {
	var req ResolveWeekRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	date, _ := accounting.ParseDate(req.Date)

	week, err := h.Engine.Calendar.Resolve(r.Context(), date)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve speelweek", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSpeelweekDTO(*week))
}

// CurrentWeek returns the date range of the week containing today.
func (h *Handler) CurrentWeek(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Calendar.Current(r.Context(), h.Now())
	if err != nil {
		h.writeDomainError(w, "Failed to compute current week", err)
		return
	}
	writeJSON(w, http.StatusOK, ToPeriodDTO(p))
}

// RenumberWeek corrects the week number of a speelweek.
func (h *Handler) RenumberWeek(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid speelweek ID", err)
		return
	}
	var req RenumberWeekRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	week, err := h.Engine.History.RenumberWeek(r.Context(), accounting.SpeelweekID(id), req.WeekNumber)
	if err != nil {
		h.writeDomainError(w, "Failed to renumber speelweek", err)
		return
	}
	writeJSON(w, http.StatusOK, ToSpeelweekDTO(*week))
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// ImportRows imports one day of POS rows sent as JSON.
func (h *Handler) ImportRows(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	date, _ := accounting.ParseDate(req.Date)

	rows := make([]accounting.TransactionRow, len(req.Rows))
	for i, row := range req.Rows {
		amount, err := parseMoney(row.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid amount in row %d", i+1), err)
			return
		}
		rows[i] = accounting.TransactionRow{
			Category: row.Category,
			Film:     row.Film,
			Room:     row.Room,
			Child:    row.Child,
			ThreeD:   row.ThreeD,
			Free:     row.Free,
			Quantity: row.Quantity,
			Amount:   amount,
		}
	}

	h.runImport(w, r, accounting.ImportRequest{Date: date, SourceFile: req.SourceFile, Rows: rows})
}

// ImportCSV imports a POS day export posted as the request body.
//
// Query parameters:
//   - date:   sale date (YYYY-MM-DD), required
//   - source: file name recorded on the rows
//   - delim:  field delimiter, default ","
func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	reader := posexport.Reader{}
	if d := r.URL.Query().Get("delim"); d != "" {
		reader.Comma = []rune(d)[0]
	}

	rows, err := reader.Read(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid POS export", err)
		return
	}

	h.runImport(w, r, accounting.ImportRequest{
		Date:       date,
		SourceFile: r.URL.Query().Get("source"),
		Rows:       rows,
	})
}

func (h *Handler) runImport(w http.ResponseWriter, r *http.Request, req accounting.ImportRequest) {
	res, err := h.Engine.Importer.Import(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, "Failed to import sales", err)
		return
	}
	writeJSON(w, http.StatusCreated, ToImportResponse(res))
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

// CorrectSales applies a manual edit to a stored day.
func (h *Handler) CorrectSales(w http.ResponseWriter, r *http.Request) {
	var req SalesCorrectionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	date, _ := accounting.ParseDate(req.Date)

	c := accounting.SalesCorrection{
		Date:         date,
		FilmID:       accounting.FilmID(req.FilmID),
		RoomID:       accounting.RoomID(req.RoomID),
		PaidAdultQty: req.PaidAdultQty,
		PaidChildQty: req.PaidChildQty,
		FreeAdultQty: req.FreeAdultQty,
		FreeChildQty: req.FreeChildQty,
		Is3D:         req.Is3D,
	}
	var err error
	if c.AdultUnitPrice, err = optionalMoney(req.AdultUnitPrice); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid adult_unit_price", err)
		return
	}
	if c.ChildUnitPrice, err = optionalMoney(req.ChildUnitPrice); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid child_unit_price", err)
		return
	}

	sales, err := h.Engine.Sales.Correct(r.Context(), c)
	if err != nil {
		h.writeDomainError(w, "Failed to correct sales", err)
		return
	}
	writeJSON(w, http.StatusOK, ToDailySalesDTO(*sales))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetHistory lists the stored days of a period with a totals line.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	period, ok := h.queryPeriod(w, r)
	if !ok {
		return
	}

	rows, err := h.Engine.History.Rows(r.Context(), period.Start, period.End)
	if err != nil {
		h.writeDomainError(w, "Failed to read history", err)
		return
	}
	writeJSON(w, http.StatusOK, ToHistoryResponse(period, rows, h.Engine.History.Totals(rows)))
}

// GetHistoryCSV returns the same listing as GetHistory as a CSV download.
func (h *Handler) GetHistoryCSV(w http.ResponseWriter, r *http.Request) {
	period, ok := h.queryPeriod(w, r)
	if !ok {
		return
	}

	rows, err := h.Engine.History.Rows(r.Context(), period.Start, period.End)
	if err != nil {
		h.writeDomainError(w, "Failed to read history", err)
		return
	}
	name := fmt.Sprintf("history-%s-%s.csv", accounting.FormatDate(period.Start), accounting.FormatDate(period.End))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if err := WriteHistoryCSV(w, rows); err != nil {
		h.log.Error().Err(err).Msg("Failed to write history CSV")
	}
}

// ListStatements builds every statement with sales in a period.
func (h *Handler) ListStatements(w http.ResponseWriter, r *http.Request) {
	period, ok := h.queryPeriod(w, r)
	if !ok {
		return
	}

	batch, err := h.Engine.Statements.BuildRange(r.Context(), period.Start, period.End)
	if err != nil {
		h.writeDomainError(w, "Failed to build statements", err)
		return
	}
	writeJSON(w, http.StatusOK, ToBatchResponse(batch))
}

// GetStatement builds one statement.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	var ids [3]int64
	for i, name := range []string{"week", "film", "room"} {
		id, err := pathID(r, name)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid "+name+" ID", err)
			return
		}
		ids[i] = id
	}

	st, err := h.Engine.Statements.Build(r.Context(), accounting.StatementKey{
		SpeelweekID: accounting.SpeelweekID(ids[0]),
		FilmID:      accounting.FilmID(ids[1]),
		RoomID:      accounting.RoomID(ids[2]),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to build statement", err)
		return
	}
	writeJSON(w, http.StatusOK, ToStatementDTO(st))
}

// AuditTickets reports ticket numbering drift for a film in a room.
func (h *Handler) AuditTickets(w http.ResponseWriter, r *http.Request) {
	film, err := strconv.ParseInt(r.URL.Query().Get("film"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid film ID", err)
		return
	}
	room, err := strconv.ParseInt(r.URL.Query().Get("room"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid room ID", err)
		return
	}

	drifts, err := h.Engine.Allocator.Audit(r.Context(), accounting.FilmID(film), accounting.RoomID(room))
	if err != nil {
		h.writeDomainError(w, "Failed to audit tickets", err)
		return
	}
	writeJSON(w, http.StatusOK, ToTicketDriftDTOs(drifts))
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeAndValidate decodes the JSON body into dst and runs its validate
// tags. It writes the error response and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			details := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Validation failed",
				Code:    "validation",
				Details: details,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// queryPeriod reads the from/to query parameters.
func (h *Handler) queryPeriod(w http.ResponseWriter, r *http.Request) (accounting.Period, bool) {
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return accounting.Period{}, false
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return accounting.Period{}, false
	}
	p, err := accounting.NewPeriod(from, to)
	if err != nil {
		h.writeDomainError(w, "Invalid period", err)
		return accounting.Period{}, false
	}
	return p, true
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	return accounting.ParseDate(v)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// parseMoney reads an amount with accounting.ParseAmount; empty is zero.
func parseMoney(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return accounting.ParseAmount(s)
}

func optionalMoney(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseMoney(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// writeDomainError maps accounting errors to HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var verr *accounting.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Code:    "validation",
			Details: map[string]string{verr.Field: verr.Reason},
		})
	case errors.Is(err, accounting.ErrValidation):
		writeErrorCode(w, http.StatusBadRequest, "validation", message, err)
	case errors.Is(err, accounting.ErrNoData):
		writeErrorCode(w, http.StatusNotFound, "no_data", message, err)
	case errors.Is(err, accounting.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "not_found", message, err)
	case errors.Is(err, accounting.ErrWeekNumberTaken):
		writeErrorCode(w, http.StatusConflict, "week_number_taken", message, err)
	case errors.Is(err, accounting.ErrDuplicate):
		writeErrorCode(w, http.StatusConflict, "duplicate", message, err)
	default:
		h.log.Error().Err(err).Msg(message)
		writeErrorCode(w, http.StatusInternalServerError, "storage", message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeErrorCode(w, status, "", message, err)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
