package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"financeiro/internal/core"
	"financeiro/internal/services"
)

// appMetrics counts application level events for /metrics.
type appMetrics struct {
	expensesCreated int64
	incomeCreated   int64
	cacheHits       int64
	cacheMisses     int64
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the store and reports cache and limiter state.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.ready != nil {
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "check", "store", "error", err.Error())
			checks["store"] = "failed"
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	} else {
		checks["store"] = "ok"
	}

	summaryEntries := 0
	if s.summaries != nil {
		summaryEntries = s.summaries.Size()
	}
	checks["cache"] = map[string]any{
		"summary_entries": summaryEntries,
		"enabled":         s.summaries != nil,
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	summaryEntries := 0
	if s.summaries != nil {
		summaryEntries = s.summaries.Size()
	}

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("expense_batches_total", "counter", "Purchases recorded", atomic.LoadInt64(&s.metrics.expensesCreated))
	metric("income_total", "counter", "Income entries recorded", atomic.LoadInt64(&s.metrics.incomeCreated))
	metric("summary_cache_hits_total", "counter", "Summary cache hits", atomic.LoadInt64(&s.metrics.cacheHits))
	metric("summary_cache_misses_total", "counter", "Summary cache misses", atomic.LoadInt64(&s.metrics.cacheMisses))
	metric("summary_cache_entries", "gauge", "Current summary cache entries", summaryEntries)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", s.now().Sub(s.started).Seconds()))
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	type option struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}
	var out []option
	for _, m := range core.UpcomingMonths(s.now(), 12) {
		out = append(out, option{Value: m.Format("2006-01"), Label: m.Label()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": out})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var body expenseRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	req, err := body.toInstallmentRequest(s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := s.budget.AddExpense(r.Context(), req)
	if len(rows) > 0 {
		s.invalidateUser(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.metrics.expensesCreated, 1)
	writeJSON(w, http.StatusCreated, map[string]any{"expenses": rows})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.budget.ListExpenses(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.Expense{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "expenses": rows})
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var body incomeRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	value, err := parseAmount("value", string(body.Value))
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := parseMonthField(body.Month, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}

	in, err := s.budget.AddIncome(r.Context(), value, sanitizeInput(body.Description), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateUser(r.Context())
	atomic.AddInt64(&s.metrics.incomeCreated, 1)
	writeJSON(w, http.StatusCreated, map[string]any{"income": in})
}

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.budget.ListIncome(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.Income{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"month": month, "income": rows})
}

type cardLimitResponse struct {
	CardLimit    core.Money `json:"card_limit"`
	HasCardLimit bool       `json:"has_card_limit"`
}

func (s *Server) handleGetCardLimit(w http.ResponseWriter, r *http.Request) {
	limit, ok, err := s.budget.CardLimit(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cardLimitResponse{CardLimit: limit, HasCardLimit: ok})
}

func (s *Server) handleSetCardLimit(w http.ResponseWriter, r *http.Request) {
	var body cardLimitRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := parseLimit(string(body.CardLimit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.budget.SetCardLimit(r.Context(), limit); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateUser(r.Context())
	writeJSON(w, http.StatusOK, cardLimitResponse{CardLimit: limit, HasCardLimit: true})
}

type barPoint struct {
	Name   string     `json:"name"`
	Amount core.Money `json:"amount"`
}

type summaryResponse struct {
	services.Summary
	Series []barPoint `json:"series"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := s.monthParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.summary(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary: sum,
		Series: []barPoint{
			{Name: "receitas", Amount: sum.TotalIncome},
			{Name: "despesas", Amount: sum.TotalExpenses},
		},
	})
}
