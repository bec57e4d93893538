package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/opencirc/circulation/internal/core/domain"
	"github.com/opencirc/circulation/internal/core/service"
)

// HTTPHandler is the thin caller-side surface over the three services.
// No business rule lives here: it parses input, resolves default rates
// through the rate service, and maps error kinds to status codes.
type HTTPHandler struct {
	loans     *service.LoanService
	inventory *service.InventoryService
	fines     *service.FineService
	rates     *service.RateService
	logger    zerolog.Logger
}

func NewHTTPHandler(loans *service.LoanService, inventory *service.InventoryService, fines *service.FineService, rates *service.RateService, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		loans:     loans,
		inventory: inventory,
		fines:     fines,
		rates:     rates,
		logger:    logger.With().Str("component", "http").Logger(),
	}
}

// Routes mounts every operation on a chi router.
func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.openLoan)
		r.Post("/sweep", h.sweepOverdue)
		r.Get("/open", h.listOpenLoans)
		r.Get("/{id}", h.getLoan)
		r.Get("/{id}/fines", h.listLoanFines)
		r.Post("/{id}/return", h.returnLoan)
		r.Post("/{id}/lost", h.loanLost)
	})

	r.Route("/borrowers/{id}", func(r chi.Router) {
		r.Get("/loans", h.listBorrowerLoans)
		r.Get("/fines", h.listBorrowerFines)
		r.Get("/fines/summary", h.borrowerFineSummary)
	})

	r.Route("/items/{id}", func(r chi.Router) {
		r.Get("/copies", h.listCopies)
		r.Put("/copies", h.resizeStock)
		r.Get("/availability", h.availability)
		r.Post("/reserve", h.reserveCopy)
	})

	r.Route("/copies/{id}", func(r chi.Router) {
		r.Post("/release", h.releaseCopy)
		r.Post("/lost", h.copyLost)
	})

	r.Route("/fines", func(r chi.Router) {
		r.Post("/", h.createFine)
		r.Get("/pending", h.listPendingFines)
		r.Get("/settled", h.listSettledFines)
		r.Get("/{id}", h.getFine)
		r.Post("/{id}/pay", h.payFine)
		r.Post("/{id}/waive", h.waiveFine)
	})

	r.Route("/rates/{key}", func(r chi.Router) {
		r.Get("/", h.getRate)
		r.Put("/", h.setRate)
	})

	return r
}

// Loans

type openLoanRequest struct {
	BorrowerID string `json:"borrower_id"`
	ItemID     string `json:"item_id"`
	LoanDate   string `json:"loan_date"`
	DueDate    string `json:"due_date"`
}

func (h *HTTPHandler) openLoan(w http.ResponseWriter, r *http.Request) {
	var req openLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.BorrowerID == "" || req.ItemID == "" {
		h.badRequest(w, "borrower_id and item_id are required")
		return
	}
	loanDate, err := parseDate(req.LoanDate)
	if err != nil {
		h.badRequest(w, "invalid loan_date")
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		h.badRequest(w, "invalid due_date")
		return
	}

	loan, err := h.loans.Open(r.Context(), req.BorrowerID, req.ItemID, loanDate, dueDate)
	observe("loan_open", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loanToJSON(*loan))
}

type resolveLoanRequest struct {
	AsOf      string `json:"as_of"`
	RateCents *int64 `json:"rate_cents,omitempty"`
}

func (h *HTTPHandler) returnLoan(w http.ResponseWriter, r *http.Request) {
	var req resolveLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	asOf, err := parseDate(req.AsOf)
	if err != nil {
		h.badRequest(w, "invalid as_of")
		return
	}

	rate, err := h.resolveRate(r, req.RateCents, domain.RateLateFeePerDay, domain.DefaultLateFeePerDayCents)
	if err != nil {
		h.writeError(w, err)
		return
	}

	fine, err := h.loans.Return(r.Context(), chi.URLParam(r, "id"), asOf, rate)
	observe("loan_return", err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]any{"state": domain.LoanReturned}
	if fine != nil {
		resp["fine"] = fineToJSON(*fine)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) loanLost(w http.ResponseWriter, r *http.Request) {
	var req resolveLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	asOf, err := parseDate(req.AsOf)
	if err != nil {
		h.badRequest(w, "invalid as_of")
		return
	}

	fee, err := h.resolveRate(r, req.RateCents, domain.RateLostItemFee, domain.DefaultLostItemFeeCents)
	if err != nil {
		h.writeError(w, err)
		return
	}

	fine, err := h.loans.MarkLost(r.Context(), chi.URLParam(r, "id"), asOf, fee)
	observe("loan_lost", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state": domain.LoanLost,
		"fine":  fineToJSON(*fine),
	})
}

type sweepRequest struct {
	AsOf string `json:"as_of"`
}

func (h *HTTPHandler) sweepOverdue(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now().UTC()
	var req sweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.AsOf != "" {
		parsed, err := parseDate(req.AsOf)
		if err != nil {
			h.badRequest(w, "invalid as_of")
			return
		}
		asOf = parsed
	}

	n, err := h.loans.SweepOverdue(r.Context(), asOf)
	observe("loan_sweep", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"transitioned": n})
}

func (h *HTTPHandler) getLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.loans.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loanToJSON(*loan))
}

func (h *HTTPHandler) listOpenLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.ListOpen(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loansToJSON(loans))
}

func (h *HTTPHandler) listBorrowerLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.loans.ListByBorrower(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loansToJSON(loans))
}

// Inventory

type resizeStockRequest struct {
	Target int `json:"target"`
}

func (h *HTTPHandler) resizeStock(w http.ResponseWriter, r *http.Request) {
	var req resizeStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	itemID := chi.URLParam(r, "id")

	stock, err := h.inventory.Stock(r.Context(), itemID)
	if err != nil {
		observe("stock_resize", err)
		h.writeError(w, err)
		return
	}

	// The grow leg also handles target == total: a no-op that still
	// validates the item and the target.
	var added, removed, shortfall int
	if req.Target >= stock.Total() {
		added, err = h.inventory.GrowTo(r.Context(), itemID, req.Target)
	} else {
		removed, shortfall, err = h.inventory.ShrinkTo(r.Context(), itemID, req.Target)
	}
	observe("stock_resize", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"added":     added,
		"removed":   removed,
		"shortfall": shortfall,
	})
}

func (h *HTTPHandler) availability(w http.ResponseWriter, r *http.Request) {
	stock, err := h.inventory.Stock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"available": stock.Available,
		"loaned":    stock.Loaned,
		"lost":      stock.Lost,
		"total":     stock.Total(),
	})
}

func (h *HTTPHandler) listCopies(w http.ResponseWriter, r *http.Request) {
	copies, err := h.inventory.ListCopies(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(copies))
	for _, c := range copies {
		out = append(out, copyToJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) reserveCopy(w http.ResponseWriter, r *http.Request) {
	c, err := h.inventory.Reserve(r.Context(), chi.URLParam(r, "id"))
	observe("copy_reserve", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, copyToJSON(*c))
}

func (h *HTTPHandler) releaseCopy(w http.ResponseWriter, r *http.Request) {
	err := h.inventory.Release(r.Context(), chi.URLParam(r, "id"))
	observe("copy_release", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.CopyAvailable)})
}

func (h *HTTPHandler) copyLost(w http.ResponseWriter, r *http.Request) {
	err := h.inventory.MarkLost(r.Context(), chi.URLParam(r, "id"))
	observe("copy_lost", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.CopyLost)})
}

// Fines

type createFineRequest struct {
	LoanID      string `json:"loan_id"`
	BorrowerID  string `json:"borrower_id"`
	Kind        string `json:"kind"`
	AmountCents int64  `json:"amount_cents"`
	Note        string `json:"note"`
}

func (h *HTTPHandler) createFine(w http.ResponseWriter, r *http.Request) {
	var req createFineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	kind := domain.FineKind(req.Kind)
	if kind != domain.FineLate && kind != domain.FineLost {
		h.badRequest(w, "kind must be late or lost")
		return
	}

	fine, err := h.fines.Create(r.Context(), req.LoanID, req.BorrowerID, kind, req.AmountCents, req.Note)
	observe("fine_create", err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fineToJSON(*fine))
}

type settleFineRequest struct {
	Date string `json:"date"`
}

func (h *HTTPHandler) payFine(w http.ResponseWriter, r *http.Request) {
	h.settleFine(w, r, h.fines.SettlePaid, "fine_pay")
}

func (h *HTTPHandler) waiveFine(w http.ResponseWriter, r *http.Request) {
	h.settleFine(w, r, h.fines.SettleWaived, "fine_waive")
}

func (h *HTTPHandler) settleFine(w http.ResponseWriter, r *http.Request, settle func(context.Context, string, time.Time) error, op string) {
	var req settleFineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	at := time.Now().UTC()
	if req.Date != "" {
		parsed, err := parseDate(req.Date)
		if err != nil {
			h.badRequest(w, "invalid date")
			return
		}
		at = parsed
	}

	err := settle(r.Context(), chi.URLParam(r, "id"), at)
	observe(op, err)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"settled_at": at.Format(time.RFC3339)})
}

func (h *HTTPHandler) getFine(w http.ResponseWriter, r *http.Request) {
	fine, err := h.fines.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fineToJSON(*fine))
}

func (h *HTTPHandler) listLoanFines(w http.ResponseWriter, r *http.Request) {
	h.writeFines(w, func() ([]domain.Fine, error) {
		return h.fines.ListByLoan(r.Context(), chi.URLParam(r, "id"))
	})
}

func (h *HTTPHandler) listBorrowerFines(w http.ResponseWriter, r *http.Request) {
	h.writeFines(w, func() ([]domain.Fine, error) {
		return h.fines.ListByBorrower(r.Context(), chi.URLParam(r, "id"))
	})
}

func (h *HTTPHandler) listPendingFines(w http.ResponseWriter, r *http.Request) {
	h.writeFines(w, func() ([]domain.Fine, error) { return h.fines.ListPending(r.Context()) })
}

func (h *HTTPHandler) listSettledFines(w http.ResponseWriter, r *http.Request) {
	h.writeFines(w, func() ([]domain.Fine, error) { return h.fines.ListSettled(r.Context()) })
}

func (h *HTTPHandler) writeFines(w http.ResponseWriter, list func() ([]domain.Fine, error)) {
	fines, err := list()
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(fines))
	for _, f := range fines {
		out = append(out, fineToJSON(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) borrowerFineSummary(w http.ResponseWriter, r *http.Request) {
	borrowerID := chi.URLParam(r, "id")
	total, err := h.fines.TotalPending(r.Context(), borrowerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	count, err := h.fines.CountPending(r.Context(), borrowerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"total_pending_cents": total,
		"count_pending":       int64(count),
	})
}

// Rates

func (h *HTTPHandler) getRate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	cents, err := h.rates.Rate(r.Context(), key, defaultRate(key))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cents": cents})
}

type setRateRequest struct {
	Cents int64 `json:"cents"`
}

func (h *HTTPHandler) setRate(w http.ResponseWriter, r *http.Request) {
	var req setRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := h.rates.SetRate(r.Context(), chi.URLParam(r, "key"), req.Cents); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cents": req.Cents})
}

func (h *HTTPHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resolveRate prefers an explicit override from the request, falling
// back to a fresh read of the configured rate.
func (h *HTTPHandler) resolveRate(r *http.Request, override *int64, key string, def int64) (int64, error) {
	if override != nil {
		return *override, nil
	}
	return h.rates.Rate(r.Context(), key, def)
}

func defaultRate(key string) int64 {
	if key == domain.RateLostItemFee {
		return domain.DefaultLostItemFeeCents
	}
	return domain.DefaultLateFeePerDayCents
}
