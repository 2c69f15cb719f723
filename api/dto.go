/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the accounting model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

CONVENTIONS:
  - Dates are "2006-01-02" strings
  - Money is a string with exactly two decimals ("391.00")
  - Rates are percentages with two decimals ("5.66")

VALIDATION:
  Request types carry validator/v10 tags, checked by decodeAndValidate.
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/cinemacentral/borderel/accounting"
)

// =============================================================================
// SETTINGS
// =============================================================================

// SettingsDTO is the full settings view.
type SettingsDTO struct {
	WeekStartWeekday   int    `json:"week_start_weekday"`
	WeekStartLabel     string `json:"week_start_label"`
	WeekCounter        int    `json:"week_counter"`
	VATPercent         string `json:"vat_percent"`
	AuthorPercent      string `json:"author_percent"`
	TicketCounterAdult int    `json:"ticket_counter_volw"`
	TicketCounterChild int    `json:"ticket_counter_kind"`
}

// =============================================================================
// SPEELWEEK
// =============================================================================

// SpeelweekDTO represents a speelweek. EndDate is exclusive, LastDate the
// final day of the week.
type SpeelweekDTO struct {
	ID         int64  `json:"id"`
	WeekNumber int    `json:"week_number"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	LastDate   string `json:"last_date"`
}

// ResolveWeekRequest asks for the speelweek of a date.
type ResolveWeekRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// RenumberWeekRequest corrects a week number.
type RenumberWeekRequest struct {
	WeekNumber int `json:"week_number" validate:"required,min=1"`
}

// PeriodDTO is an inclusive date range.
type PeriodDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// =============================================================================
// IMPORT
// =============================================================================

// TransactionRowDTO is one POS line.
type TransactionRowDTO struct {
	Category string `json:"category"`
	Film     string `json:"film"`
	Room     string `json:"room"`
	Child    bool   `json:"child"`
	ThreeD   bool   `json:"is_3d"`
	Free     bool   `json:"free"`
	Quantity int    `json:"quantity" validate:"min=0"`
	Amount   string `json:"amount" validate:"omitempty,amount"`
}

// ImportRequest is one day of POS lines.
type ImportRequest struct {
	Date       string              `json:"date" validate:"required,datetime=2006-01-02"`
	SourceFile string              `json:"source_file"`
	Rows       []TransactionRowDTO `json:"rows" validate:"dive"`
}

// ImportedRowDTO is the outcome of one (film, room) total.
type ImportedRowDTO struct {
	Film         string `json:"film"`
	Room         string `json:"room"`
	FilmID       int64  `json:"film_id,omitempty"`
	RoomID       int64  `json:"room_id,omitempty"`
	Is3D         bool   `json:"is_3d"`
	PaidAdultQty int    `json:"paid_adult_qty"`
	PaidChildQty int    `json:"paid_child_qty"`
	FreeAdultQty int    `json:"free_adult_qty"`
	FreeChildQty int    `json:"free_child_qty"`
	AdultAmount  string `json:"adult_amount"`
	ChildAmount  string `json:"child_amount"`
	Saved        bool   `json:"saved"`
	Error        string `json:"error,omitempty"`
}

// ImportResponse summarizes an import.
type ImportResponse struct {
	Date   string           `json:"date"`
	Week   *SpeelweekDTO    `json:"week,omitempty"`
	Saved  int              `json:"saved"`
	Failed int              `json:"failed"`
	Rows   []ImportedRowDTO `json:"rows"`
}

// =============================================================================
// SALES
// =============================================================================

// SalesCorrectionRequest edits one stored row; omitted fields are kept.
type SalesCorrectionRequest struct {
	Date           string  `json:"date" validate:"required,datetime=2006-01-02"`
	FilmID         int64   `json:"film_id" validate:"required,min=1"`
	RoomID         int64   `json:"room_id" validate:"required,min=1"`
	PaidAdultQty   *int    `json:"paid_adult_qty" validate:"omitempty,min=0"`
	PaidChildQty   *int    `json:"paid_child_qty" validate:"omitempty,min=0"`
	FreeAdultQty   *int    `json:"free_adult_qty" validate:"omitempty,min=0"`
	FreeChildQty   *int    `json:"free_child_qty" validate:"omitempty,min=0"`
	AdultUnitPrice *string `json:"adult_unit_price" validate:"omitempty,amount"`
	ChildUnitPrice *string `json:"child_unit_price" validate:"omitempty,amount"`
	Is3D           *bool   `json:"is_3d"`
}

// DailySalesDTO is one stored day.
type DailySalesDTO struct {
	Date         string `json:"date"`
	SpeelweekID  int64  `json:"speelweek_id"`
	FilmID       int64  `json:"film_id"`
	RoomID       int64  `json:"room_id"`
	Is3D         bool   `json:"is_3d"`
	PaidAdultQty int    `json:"paid_adult_qty"`
	PaidChildQty int    `json:"paid_child_qty"`
	FreeAdultQty int    `json:"free_adult_qty"`
	FreeChildQty int    `json:"free_child_qty"`
	TotalQty     int    `json:"total_qty"`
	AdultAmount  string `json:"adult_amount"`
	ChildAmount  string `json:"child_amount"`
	TotalAmount  string `json:"total_amount"`
	SourceFile   string `json:"source_file,omitempty"`
}

// =============================================================================
// HISTORY
// =============================================================================

// HistoryRowDTO is a stored day joined with week, film and room.
type HistoryRowDTO struct {
	DailySalesDTO
	WeekNumber int    `json:"week_number"`
	WeekStart  string `json:"week_start"`
	Film       string `json:"film"`
	Room       string `json:"room"`
}

// HistoryTotalsDTO is the totals line.
type HistoryTotalsDTO struct {
	Rows         int    `json:"rows"`
	PaidAdultQty int    `json:"paid_adult_qty"`
	PaidChildQty int    `json:"paid_child_qty"`
	FreeAdultQty int    `json:"free_adult_qty"`
	FreeChildQty int    `json:"free_child_qty"`
	TotalQty     int    `json:"total_qty"`
	AdultAmount  string `json:"adult_amount"`
	ChildAmount  string `json:"child_amount"`
	TotalAmount  string `json:"total_amount"`
}

// HistoryResponse is a listing with its totals.
type HistoryResponse struct {
	Period PeriodDTO        `json:"period"`
	Rows   []HistoryRowDTO  `json:"rows"`
	Totals HistoryTotalsDTO `json:"totals"`
}

// =============================================================================
// STATEMENTS
// =============================================================================

// FilmDTO is film metadata.
type FilmDTO struct {
	ID            int64  `json:"id"`
	InternalTitle string `json:"internal_title"`
	Title         string `json:"title"`
	Distributor   string `json:"distributor"`
	Country       string `json:"country"`
}

// FiguresDTO holds the rounded statement lines.
type FiguresDTO struct {
	PaidAdultQty   int    `json:"paid_adult_qty"`
	PaidChildQty   int    `json:"paid_child_qty"`
	FreeAdultQty   int    `json:"free_adult_qty"`
	FreeChildQty   int    `json:"free_child_qty"`
	TicketsTotal   int    `json:"tickets_total"`
	AdultAmount    string `json:"adult_amount"`
	ChildAmount    string `json:"child_amount"`
	GrossTotal     string `json:"gross_total"`
	VATAmount      string `json:"vat_amount"`
	NetAmount      string `json:"net_amount"`
	AuthorFee      string `json:"author_fee"`
	Difference     string `json:"difference"`
	AdultUnitPrice string `json:"adult_unit_price"`
	ChildUnitPrice string `json:"child_unit_price"`
}

// TicketNumbersDTO is the printed ticket range.
type TicketNumbersDTO struct {
	BeginAdult int `json:"begin_adult"`
	EndAdult   int `json:"end_adult"`
	BeginChild int `json:"begin_child"`
	EndChild   int `json:"end_child"`
}

// DayLineDTO is one day of the breakdown.
type DayLineDTO struct {
	Date           string `json:"date"`
	Weekday        string `json:"weekday"`
	AdultQty       int    `json:"adult_qty"`
	ChildQty       int    `json:"child_qty"`
	FreeAdultQty   int    `json:"free_adult_qty"`
	FreeChildQty   int    `json:"free_child_qty"`
	AdultAmount    string `json:"adult_amount"`
	ChildAmount    string `json:"child_amount"`
	AdultUnitPrice string `json:"adult_unit_price"`
	ChildUnitPrice string `json:"child_unit_price"`
}

// StatementDTO is a complete borderel.
type StatementDTO struct {
	FileName      string           `json:"file_name"`
	Week          SpeelweekDTO     `json:"week"`
	Film          FilmDTO          `json:"film"`
	RoomID        int64            `json:"room_id"`
	Room          string           `json:"room"`
	Is3D          bool             `json:"is_3d"`
	VATPercent    string           `json:"vat_percent"`
	AuthorPercent string           `json:"author_percent"`
	Figures       FiguresDTO       `json:"figures"`
	Tickets       TicketNumbersDTO `json:"tickets"`
	Days          []DayLineDTO     `json:"days"`
}

// StatementFailureDTO is a combination that could not be built.
type StatementFailureDTO struct {
	SpeelweekID int64  `json:"speelweek_id"`
	FilmID      int64  `json:"film_id"`
	RoomID      int64  `json:"room_id"`
	Error       string `json:"error"`
}

// BatchResponse lists the statements of a period.
type BatchResponse struct {
	Period     PeriodDTO             `json:"period"`
	Statements []StatementDTO        `json:"statements"`
	Failures   []StatementFailureDTO `json:"failures"`
}

// TicketDriftDTO is a numbering boundary that does not line up.
type TicketDriftDTO struct {
	SpeelweekID         int64  `json:"speelweek_id"`
	PreviousSpeelweekID int64  `json:"previous_speelweek_id"`
	Stream              string `json:"stream"`
	Expected            int    `json:"expected"`
	Actual              int    `json:"actual"`
	Gap                 int    `json:"gap"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func money(d decimal.Decimal) string { return accounting.RoundMoney(d).StringFixed(2) }

func percent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).StringFixed(2)
}

func ToSettingsDTO(s accounting.SettingsSnapshot) SettingsDTO {
	return SettingsDTO{
		WeekStartWeekday:   s.WeekStartWeekday,
		WeekStartLabel:     accounting.WeekdayLabels[s.WeekStartWeekday],
		WeekCounter:        s.WeekCounter,
		VATPercent:         percent(s.VATRate),
		AuthorPercent:      percent(s.AuthorRate),
		TicketCounterAdult: s.TicketCounterAdult,
		TicketCounterChild: s.TicketCounterChild,
	}
}

func ToSpeelweekDTO(w accounting.Speelweek) SpeelweekDTO {
	return SpeelweekDTO{
		ID:         int64(w.ID),
		WeekNumber: w.WeekNumber,
		StartDate:  accounting.FormatDate(w.Start),
		EndDate:    accounting.FormatDate(w.End),
		LastDate:   accounting.FormatDate(w.Period().End),
	}
}

func ToPeriodDTO(p accounting.Period) PeriodDTO {
	return PeriodDTO{From: accounting.FormatDate(p.Start), To: accounting.FormatDate(p.End)}
}

func ToDailySalesDTO(s accounting.DailySales) DailySalesDTO {
	return DailySalesDTO{
		Date:         accounting.FormatDate(s.Date),
		SpeelweekID:  int64(s.SpeelweekID),
		FilmID:       int64(s.FilmID),
		RoomID:       int64(s.RoomID),
		Is3D:         s.Is3D,
		PaidAdultQty: s.PaidAdultQty,
		PaidChildQty: s.PaidChildQty,
		FreeAdultQty: s.FreeAdultQty,
		FreeChildQty: s.FreeChildQty,
		TotalQty:     s.TotalQty(),
		AdultAmount:  money(s.AdultAmount),
		ChildAmount:  money(s.ChildAmount),
		TotalAmount:  money(s.TotalAmount()),
		SourceFile:   s.SourceFile,
	}
}

func ToImportResponse(res *accounting.ImportResult) ImportResponse {
	out := ImportResponse{
		Date:  accounting.FormatDate(res.Date),
		Saved: res.Saved,
		Rows:  make([]ImportedRowDTO, len(res.Rows)),
	}
	if res.Week != nil {
		w := ToSpeelweekDTO(*res.Week)
		out.Week = &w
	}
	for i, r := range res.Rows {
		dto := ImportedRowDTO{
			Film:         r.Film,
			Room:         r.Room,
			FilmID:       int64(r.FilmID),
			RoomID:       int64(r.RoomID),
			Is3D:         r.Is3D,
			PaidAdultQty: r.PaidAdultQty,
			PaidChildQty: r.PaidChildQty,
			FreeAdultQty: r.FreeAdultQty,
			FreeChildQty: r.FreeChildQty,
			AdultAmount:  money(r.AdultAmount),
			ChildAmount:  money(r.ChildAmount),
			Saved:        r.Saved,
		}
		if r.Err != nil {
			dto.Error = r.Err.Error()
			out.Failed++
		}
		out.Rows[i] = dto
	}
	return out
}

func ToHistoryResponse(p accounting.Period, rows []accounting.HistoryRow, t accounting.HistoryTotals) HistoryResponse {
	out := HistoryResponse{
		Period: ToPeriodDTO(p),
		Rows:   make([]HistoryRowDTO, len(rows)),
		Totals: HistoryTotalsDTO{
			Rows:         t.Rows,
			PaidAdultQty: t.PaidAdultQty,
			PaidChildQty: t.PaidChildQty,
			FreeAdultQty: t.FreeAdultQty,
			FreeChildQty: t.FreeChildQty,
			TotalQty:     t.TotalQty,
			AdultAmount:  money(t.AdultAmount),
			ChildAmount:  money(t.ChildAmount),
			TotalAmount:  money(t.TotalAmount),
		},
	}
	for i, r := range rows {
		out.Rows[i] = HistoryRowDTO{
			DailySalesDTO: ToDailySalesDTO(r.DailySales),
			WeekNumber:    r.WeekNumber,
			WeekStart:     accounting.FormatDate(r.WeekStart),
			Film:          r.FilmTitle,
			Room:          r.RoomName,
		}
	}
	return out
}

// ToStatementDTO converts a statement with rounded figures. The CLI writes
// the same document to disk.
func ToStatementDTO(s *accounting.Statement) StatementDTO {
	f := s.Figures.Rounded()
	out := StatementDTO{
		FileName: s.FileName(),
		Week:     ToSpeelweekDTO(s.Week),
		Film: FilmDTO{
			ID:            int64(s.Film.ID),
			InternalTitle: s.Film.InternalTitle,
			Title:         s.Film.Title(),
			Distributor:   s.Film.Distributor,
			Country:       s.Film.Country,
		},
		RoomID:        int64(s.Room.ID),
		Room:          s.Room.Name,
		Is3D:          s.Is3D,
		VATPercent:    percent(s.Rates.VAT),
		AuthorPercent: percent(s.Rates.Author),
		Figures: FiguresDTO{
			PaidAdultQty:   f.PaidAdultQty,
			PaidChildQty:   f.PaidChildQty,
			FreeAdultQty:   f.FreeAdultQty,
			FreeChildQty:   f.FreeChildQty,
			TicketsTotal:   f.TicketsTotal,
			AdultAmount:    money(f.AdultAmount),
			ChildAmount:    money(f.ChildAmount),
			GrossTotal:     money(f.GrossTotal),
			VATAmount:      money(f.VATAmount),
			NetAmount:      money(f.NetAmount),
			AuthorFee:      money(f.AuthorFee),
			Difference:     money(f.Difference),
			AdultUnitPrice: money(f.AdultUnitPrice),
			ChildUnitPrice: money(f.ChildUnitPrice),
		},
		Tickets: TicketNumbersDTO{
			BeginAdult: s.Tickets.BeginAdult,
			EndAdult:   s.Tickets.EndAdult,
			BeginChild: s.Tickets.BeginChild,
			EndChild:   s.Tickets.EndChild,
		},
		Days: make([]DayLineDTO, len(s.Days)),
	}
	for i, d := range s.Days {
		out.Days[i] = DayLineDTO{
			Date:           accounting.FormatDate(d.Date),
			Weekday:        d.Weekday,
			AdultQty:       d.AdultQty,
			ChildQty:       d.ChildQty,
			FreeAdultQty:   d.FreeAdultQty,
			FreeChildQty:   d.FreeChildQty,
			AdultAmount:    money(d.AdultAmount),
			ChildAmount:    money(d.ChildAmount),
			AdultUnitPrice: money(d.AdultUnitPrice),
			ChildUnitPrice: money(d.ChildUnitPrice),
		}
	}
	return out
}

func ToBatchResponse(b *accounting.Batch) BatchResponse {
	out := BatchResponse{
		Period:     ToPeriodDTO(b.Period),
		Statements: make([]StatementDTO, len(b.Statements)),
		Failures:   make([]StatementFailureDTO, len(b.Failures)),
	}
	for i, s := range b.Statements {
		out.Statements[i] = ToStatementDTO(s)
	}
	for i, f := range b.Failures {
		out.Failures[i] = StatementFailureDTO{
			SpeelweekID: int64(f.Key.SpeelweekID),
			FilmID:      int64(f.Key.FilmID),
			RoomID:      int64(f.Key.RoomID),
			Error:       f.Err.Error(),
		}
	}
	return out
}

func ToTicketDriftDTOs(drifts []accounting.TicketDrift) []TicketDriftDTO {
	out := make([]TicketDriftDTO, len(drifts))
	for i, d := range drifts {
		out[i] = TicketDriftDTO{
			SpeelweekID:         int64(d.SpeelweekID),
			PreviousSpeelweekID: int64(d.PreviousSpeelweekID),
			Stream:              d.Stream,
			Expected:            d.Expected,
			Actual:              d.Actual,
			Gap:                 d.Gap(),
		}
	}
	return out
}
