package http

import (
	"net/http"

	applog "gestionale/internal/log"
)

func (s *Server) handleAnnual(r *http.Request) *JSONResponse {
	params, err := ParseModelParams(r.URL.Query())
	if err != nil {
		return BadRequest(err.Error())
	}

	m, err := s.engine.AnnualModel(r.Context(), params.Year, params.WithFiscal)
	if err != nil {
		s.logBuildError(r, "annual", params.Year, err)
		return Internal()
	}
	return OK(m)
}

func (s *Server) handleFiscal(r *http.Request) *JSONResponse {
	params, err := ParseModelParams(r.URL.Query())
	if err != nil {
		return BadRequest(err.Error())
	}

	m, err := s.engine.FiscalModel(r.Context(), params.Year)
	if err != nil {
		s.logBuildError(r, "fiscal", params.Year, err)
		return Internal()
	}
	return OK(m)
}

func (s *Server) handleHistory(r *http.Request) *JSONResponse {
	m, err := s.engine.HistoricalModel(r.Context())
	if err != nil {
		s.logBuildError(r, "historical", 0, err)
		return Internal()
	}
	return OK(m)
}

// handleProjection serves the redacted historical view. Clients are
// reduced to revenue shares; names and identifiers never leave.
func (s *Server) handleProjection(r *http.Request) *JSONResponse {
	m, err := s.engine.HistoricalModel(r.Context())
	if err != nil {
		s.logBuildError(r, "historical", 0, err)
		return Internal()
	}
	return OK(m.Projection())
}

func (s *Server) handleAging(r *http.Request) *JSONResponse {
	params, err := ParseModelParams(r.URL.Query())
	if err != nil {
		return BadRequest(err.Error())
	}

	lines, err := s.engine.PaymentAging(r.Context(), params.Year)
	if err != nil {
		s.logBuildError(r, "aging", params.Year, err)
		return Internal()
	}
	payload := map[string]any{"buckets": lines}
	if params.Year != 0 {
		payload["year"] = params.Year
	}
	return OK(payload)
}

func (s *Server) logBuildError(r *http.Request, model string, year int, err error) {
	s.structured.LogError(r.Context(), "Model build failed", err,
		applog.ComponentHTTP, applog.OpBuild,
		applog.NewFields().WithModel(model, year))
}
