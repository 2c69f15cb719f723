/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	box-office data. Each scenario configures settings, imports a few days
	of POS rows and, where relevant, builds statements so ticket ranges get
	allocated.

AVAILABLE SCENARIOS:

	week-numbering:     Tuesday weeks starting at number 5, three sale days
	ticket-continuity:  One film over two weeks; week 2 numbers continue week 1
	late-correction:    Week 1 corrected after week 2 was printed (audit drift)

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Write settings
 3. Import day rows through the Importer
 4. Optionally build statements (allocates ticket ranges)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "ticket-continuity"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/cinemacentral/borderel/accounting"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "week-numbering",
		Name:        "Week Numbering",
		Description: "Weeks start on Tuesday, counter at 5; sales on 15, 17 and 20 March 2024",
	},
	{
		ID:          "ticket-continuity",
		Name:        "Ticket Continuity",
		Description: "Dune in zaal 1 over two weeks; week 2 ticket numbers follow week 1",
	},
	{
		ID:          "late-correction",
		Name:        "Late Correction",
		Description: "Week 1 sales corrected after week 2 was printed; the audit reports the gap",
	},
}

// resetter is implemented by stores that can drop all data.
type resetter interface {
	Reset(ctx context.Context) error
}

// ErrResetUnsupported is returned when the store cannot be reset.
var ErrResetUnsupported = errors.New("store does not support reset")

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	current := h.scenario()
	if current == "" {
		writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, map[string]any{"scenario": s})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scenario": nil})
}

// LoadScenario resets the database and loads a demo scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase drops all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		if errors.Is(err, ErrResetUnsupported) {
			writeError(w, http.StatusNotImplemented, "Reset not supported", err)
			return
		}
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.setScenario("")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenarioByID resets the store and loads the named scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "week-numbering":
		load = h.loadWeekNumberingScenario
	case "ticket-continuity":
		load = h.loadTicketContinuityScenario
	case "late-correction":
		load = h.loadLateCorrectionScenario
	default:
		return fmt.Errorf("%w: %q", errUnknownScenario, id)
	}

	if err := h.reset(ctx); err != nil {
		return err
	}
	h.setScenario("")
	if err := load(ctx); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.setScenario(id)
	h.log.Info().Str("scenario", id).Msg("Scenario loaded")
	return nil
}

func (h *Handler) scenario() string {
	h.scenarioMu.RLock()
	defer h.scenarioMu.RUnlock()
	return h.currentScenario
}

func (h *Handler) setScenario(id string) {
	h.scenarioMu.Lock()
	h.currentScenario = id
	h.scenarioMu.Unlock()
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Engine.Store.(resetter)
	if !ok {
		return ErrResetUnsupported
	}
	return rs.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadWeekNumberingScenario(ctx context.Context) error {
	if err := h.configure(ctx, 1, 5, 1, 1); err != nil {
		return err
	}
	days := []struct {
		date  string
		adult int
	}{
		{"2024-03-15", 12},
		{"2024-03-17", 30},
		{"2024-03-20", 8},
	}
	for _, d := range days {
		if err := h.importDay(ctx, d.date, filmRows("Dune", "1", d.adult, 0)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadTicketContinuityScenario(ctx context.Context) error {
	if err := h.configure(ctx, 2, 1, 100, 50); err != nil {
		return err
	}
	if err := h.importDay(ctx, "2024-03-14", filmRows("Dune", "1", 37, 4)); err != nil {
		return err
	}
	if err := h.importDay(ctx, "2024-03-16", filmRows("Dune", "1", 21, 9)); err != nil {
		return err
	}
	if err := h.importDay(ctx, "2024-03-21", filmRows("Dune", "1", 18, 2)); err != nil {
		return err
	}
	return h.printAll(ctx, "2024-03-13", "2024-03-26")
}

func (h *Handler) loadLateCorrectionScenario(ctx context.Context) error {
	if err := h.loadTicketContinuityScenario(ctx); err != nil {
		return err
	}
	// The cashier finds 5 unrecorded adult tickets on the first Thursday.
	film, err := h.Engine.Store.FindFilm(ctx, "Dune")
	if err != nil {
		return err
	}
	room, err := h.Engine.Store.FindRoom(ctx, "1")
	if err != nil {
		return err
	}
	if film == nil || room == nil {
		return fmt.Errorf("dune in zaal 1: %w", accounting.ErrNotFound)
	}
	date, _ := accounting.ParseDate("2024-03-14")
	qty := 42
	_, err = h.Engine.Sales.Correct(ctx, accounting.SalesCorrection{
		Date:         date,
		FilmID:       film.ID,
		RoomID:       room.ID,
		PaidAdultQty: &qty,
	})
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) configure(ctx context.Context, weekday, counter, adult, child int) error {
	return h.Engine.Settings.Update(ctx, accounting.SettingsUpdate{
		WeekStartWeekday:   &weekday,
		WeekCounter:        &counter,
		TicketCounterAdult: &adult,
		TicketCounterChild: &child,
	})
}

func (h *Handler) importDay(ctx context.Context, date string, rows []accounting.TransactionRow) error {
	d, err := accounting.ParseDate(date)
	if err != nil {
		return err
	}
	res, err := h.Engine.Importer.Import(ctx, accounting.ImportRequest{
		Date:       d,
		SourceFile: "scenario-" + date + ".csv",
		Rows:       rows,
	})
	if err != nil {
		return err
	}
	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("import %s: %w", date, failed[0].Err)
	}
	return nil
}

func (h *Handler) printAll(ctx context.Context, from, to string) error {
	f, _ := accounting.ParseDate(from)
	t, _ := accounting.ParseDate(to)
	batch, err := h.Engine.Statements.BuildRange(ctx, f, t)
	if err != nil {
		return err
	}
	if len(batch.Failures) > 0 {
		return batch.Failures[0].Err
	}
	return nil
}

// filmRows returns the POS rows of one film in one room at 10.00 (adult)
// and 7.50 (child).
func filmRows(film, room string, adult, child int) []accounting.TransactionRow {
	rows := []accounting.TransactionRow{{
		Category: accounting.CategoryFilm,
		Film:     film,
		Room:     room,
		Quantity: adult,
		Amount:   decimal.NewFromInt(int64(adult * 10)),
	}}
	if child > 0 {
		rows = append(rows, accounting.TransactionRow{
			Category: accounting.CategoryFilm,
			Film:     film,
			Room:     room,
			Child:    true,
			Quantity: child,
			Amount:   decimal.NewFromFloat(7.5).Mul(decimal.NewFromInt(int64(child))),
		})
	}
	return rows
}
