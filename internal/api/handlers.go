package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mwhitt/alphascreen/internal/contracts"
	"github.com/mwhitt/alphascreen/internal/orchestrator"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := s.db.HealthCheck(r.Context())
	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":   map[bool]string{true: "ok", false: "degraded"}[err == nil],
		"database": status,
	})
}

func (s *Server) handleRunScreening(w http.ResponseWriter, r *http.Request) {
	screenID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := s.orch.RunScreening(r.Context(), screenID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	screenID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	entries, err := s.screens.ListWatchlist(r.Context(), screenID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"screen_id": screenID,
		"count":     len(entries),
		"entries":   entries,
	})
}

func (s *Server) handleRemoveWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	screenID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ticker := mux.Vars(r)["ticker"]

	if err := s.screens.RemoveWatchlistEntry(r.Context(), screenID, ticker); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetOpportunities(w http.ResponseWriter, r *http.Request) {
	screenID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var day time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			s.writeError(w, contracts.NewValidation("date", "must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	opportunities, summary, err := s.orch.IdentifyEarningsOpportunities(r.Context(), screenID, day)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"screen_id":     screenID,
		"summary":       summary,
		"opportunities": opportunities,
	})
}

type backtestPayload struct {
	ScreenID        int64   `json:"screen_id"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	StartingCapital float64 `json:"starting_capital"`
	MaxPositions    int     `json:"max_positions"`
	TrailingStopPct float64 `json:"trailing_stop_pct"`
}

func (s *Server) handleStartBacktest(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBacktestRequest(r, true)
	if err != nil {
		s.writeError(w, err)
		return
	}

	run, err := s.orch.StartBacktest(r.Context(), *req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, runView(run))
}

func (s *Server) handleStartPaperTrade(w http.ResponseWriter, r *http.Request) {
	req, err := decodeBacktestRequest(r, false)
	if err != nil {
		s.writeError(w, err)
		return
	}

	run, err := s.orch.StartPaperTrade(r.Context(), *req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, runView(run))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	run, err := s.orch.GetRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, runView(run))
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	run, err := s.orch.ResumeRun(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, runView(run))
}

func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := s.orch.StopRun(r.Context(), runID); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": runID,
		"status": "stop requested",
	})
}

func (s *Server) handleSellPosition(w http.ResponseWriter, r *http.Request) {
	positionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	trade, err := s.orch.SellPosition(r.Context(), positionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trade_id":     trade.ID,
		"ticker":       trade.Ticker,
		"exit_price":   trade.ExitPrice,
		"realized_pnl": trade.RealizedPnL,
		"reason":       trade.Reason,
	})
}

func (s *Server) handleSchedulerHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"executions": s.sched.History(),
	})
}

func decodeBacktestRequest(r *http.Request, datesRequired bool) (*orchestrator.BacktestRequest, error) {
	var payload backtestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, contracts.NewValidation("body", "invalid JSON")
	}

	req := orchestrator.BacktestRequest{
		ScreenID:        payload.ScreenID,
		StartingCapital: payload.StartingCapital,
		MaxPositions:    payload.MaxPositions,
		TrailingStopPct: payload.TrailingStopPct,
	}

	if datesRequired {
		start, err := time.Parse("2006-01-02", payload.StartDate)
		if err != nil {
			return nil, contracts.NewValidation("start_date", "must be YYYY-MM-DD")
		}
		end, err := time.Parse("2006-01-02", payload.EndDate)
		if err != nil {
			return nil, contracts.NewValidation("end_date", "must be YYYY-MM-DD")
		}
		req.StartDate = start
		req.EndDate = end
	}

	return &req, nil
}

// runView is the wire shape of a run.
func runView(run *contracts.Run) map[string]interface{} {
	view := map[string]interface{}{
		"id":                 run.ID,
		"screen_id":          run.ScreenID,
		"type":               run.Type,
		"status":             run.Status,
		"start_date":         run.StartDate.Format("2006-01-02"),
		"end_date":           run.EndDate.Format("2006-01-02"),
		"starting_capital":   run.StartingCapital,
		"current_capital":    run.CurrentCapital,
		"final_capital":      run.FinalCapital,
		"max_positions":      run.MaxPositions,
		"trailing_stop_pct":  run.TrailingStopPct,
		"total_return_pct":   run.TotalReturnPct,
		"win_rate":           run.WinRate,
		"avg_win_amount":     run.AvgWinAmount,
		"avg_loss_amount":    run.AvgLossAmount,
		"avg_hold_time_days": run.AvgHoldTimeDays,
		"total_trades":       run.TotalTrades,
		"winning_trades":     run.WinningTrades,
		"losing_trades":      run.LosingTrades,
	}
	if run.Error != "" {
		view["error"] = run.Error
	}
	if run.CompletedAt != nil {
		view["completed_at"] = run.CompletedAt
	}
	return view
}

func pathID(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	if err != nil || id < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid " + key})
		return 0, false
	}
	return id, true
}

// writeError maps typed domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError

	switch {
	case contracts.IsNotFound(err):
		code = http.StatusNotFound
	case contracts.IsValidation(err):
		code = http.StatusBadRequest
	case contracts.IsConflict(err):
		code = http.StatusConflict
	case contracts.IsExternalData(err):
		code = http.StatusBadGateway
	}

	if code == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed")
	}

	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
