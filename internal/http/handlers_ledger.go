package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shgbook/internal/core"
	"shgbook/internal/log"
)

type yearRef struct {
	Year       int       `json:"year"`
	ModifiedOn time.Time `json:"modifiedOn"`
	ModifiedBy string    `json:"modifiedBy,omitempty"`
}

type addYearRequest struct {
	Year int `json:"year"`
}

type monthRequest struct {
	Entries []core.RawEntry `json:"entries"`
}

type importRequest struct {
	Months []core.MonthInput `json:"months"`
}

func (s *Server) ledgerRoutes(r chi.Router) {
	r.Get("/years", s.handleYears)
	r.Post("/years", s.handleAddYear)
	r.Get("/years/current", s.handleCurrentYear)

	r.Route("/years/{year}", func(yr chi.Router) {
		yr.Get("/", s.handleYear)
		yr.Get("/summary", s.handleSummary)
		yr.Get("/members", s.handleMemberTotals)
		yr.Get("/members/{id}", s.handleMemberSummary)
		yr.Put("/months/{month}", s.handleUpdateMonth)
		yr.Post("/recalculate", s.handleRecalculate)
		yr.Post("/import", s.handleImport)
		yr.Post("/import/sheets", s.handleImportSheets)
		yr.Get("/events", s.handleYearEvents)
	})
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.svc.Ledger.Years(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	refs := make([]yearRef, 0, len(years))
	for _, y := range years {
		refs = append(refs, yearRef{Year: y.Year, ModifiedOn: y.ModifiedOn, ModifiedBy: y.ModifiedBy})
	}
	writeJSON(w, http.StatusOK, refs)
}

func (s *Server) handleCurrentYear(w http.ResponseWriter, r *http.Request) {
	year := s.svc.Ledger.CurrentFinancialYear()
	_, err := s.svc.Ledger.Year(r.Context(), year)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"year": year, "exists": true})
	case core.KindOf(err) == core.KindNotFound:
		writeJSON(w, http.StatusOK, map[string]any{"year": year, "exists": false})
	default:
		writeError(w, r, err)
	}
}

func (s *Server) handleAddYear(w http.ResponseWriter, r *http.Request) {
	var req addYearRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	y, err := s.svc.Ledger.AddYear(r.Context(), actor(r), req.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateYear(y.Year)
	writeJSON(w, http.StatusCreated, y)
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	y, err := s.svc.Ledger.Year(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, y)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cached, ok := s.summaryCache.Get(summaryKey(year)); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, cached)
		return
	}
	sum, err := s.svc.Ledger.Summary(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.summaryCache.Set(summaryKey(year), sum)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleMemberTotals(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cached, ok := s.totalsCache.Get(totalsKey(year)); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, cached)
		return
	}
	totals, err := s.svc.Ledger.MemberTotals(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if totals == nil {
		totals = []core.MemberTotals{}
	}
	s.totalsCache.Set(totalsKey(year), totals)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) handleMemberSummary(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.Ledger.MemberSummary(r.Context(), year, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateMonth(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := pathInt(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req monthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	y, err := s.svc.Ledger.UpdateMonth(r.Context(), actor(r), year, month, req.Entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateYear(year)
	writeJSON(w, http.StatusOK, y)
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	y, err := s.svc.Ledger.Recalculate(r.Context(), actor(r), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateYear(year)
	writeJSON(w, http.StatusOK, y)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req importRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	y, err := s.svc.Ledger.ImportYear(r.Context(), actor(r), year, req.Months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateYear(year)
	writeJSON(w, http.StatusOK, y)
}

func (s *Server) handleImportSheets(w http.ResponseWriter, r *http.Request) {
	year, err := pathYear(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.importer == nil {
		writeError(w, r, core.NotFound("Spreadsheet import is not configured"))
		return
	}
	y, err := s.importer.Import(r.Context(), actor(r), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateYear(year)
	s.logger.InfoContext(r.Context(), "Year imported from spreadsheet",
		log.FieldYear, year, log.FieldUser, actor(r).Name())
	writeJSON(w, http.StatusOK, y)
}
