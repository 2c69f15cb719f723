package api

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/cinemacentral/borderel/accounting"
)

// HistoryCSVHeader is the column order of a history export.
var HistoryCSVHeader = []string{
	"speelweek_id", "datum", "weeknummer", "start_datum", "eind_datum",
	"interne_titel", "zaal", "is_3d",
	"aantal_volw", "aantal_kind", "gratis_volw", "gratis_kind",
	"bedrag_volw", "bedrag_kind", "totaal_aantal", "totaal_bedrag",
}

// WriteHistoryCSV writes one line per stored sales row. eind_datum is the
// exclusive end of the speelweek. Amounts are rounded to cents like the
// JSON listing.
func WriteHistoryCSV(w io.Writer, rows []accounting.HistoryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryCSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(int64(r.SpeelweekID), 10),
			accounting.FormatDate(r.Date),
			strconv.Itoa(r.WeekNumber),
			accounting.FormatDate(r.WeekStart),
			accounting.FormatDate(r.WeekEnd),
			r.FilmTitle,
			r.RoomName,
			flag(r.Is3D),
			strconv.Itoa(r.PaidAdultQty),
			strconv.Itoa(r.PaidChildQty),
			strconv.Itoa(r.FreeAdultQty),
			strconv.Itoa(r.FreeChildQty),
			money(r.AdultAmount),
			money(r.ChildAmount),
			strconv.Itoa(r.TotalQty()),
			money(r.TotalAmount()),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
