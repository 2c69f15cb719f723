package accounting

// Engine wires every service to one store. The API and the CLI hold an
// Engine instead of the individual services.
type Engine struct {
	Store      TxStore
	Settings   *Settings
	Calendar   *Calendar
	Allocator  *Allocator
	Statements *StatementService
	History    *History
	Importer   *Importer
	Sales      *SalesBook
}

// NewEngine builds the services. A nil films resolver uses
// DefaultFilmResolver.
func NewEngine(store TxStore, films FilmResolver) *Engine {
	calendar := NewCalendar(store)
	allocator := NewAllocator(store)
	return &Engine{
		Store:      store,
		Settings:   NewSettings(store),
		Calendar:   calendar,
		Allocator:  allocator,
		Statements: NewStatementService(store, allocator),
		History:    NewHistory(store),
		Importer:   NewImporter(store, calendar, films),
		Sales:      NewSalesBook(store),
	}
}
