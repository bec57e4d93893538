package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/opencirc/circulation/internal/core/domain"
	"github.com/opencirc/circulation/internal/core/service"
)

const dateLayout = "2006-01-02"

// parseDate accepts a plain date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func kindLabel(k service.Kind) string {
	switch k {
	case service.KindValidation:
		return "validation"
	case service.KindNotFound:
		return "not_found"
	case service.KindConflict:
		return "conflict"
	default:
		return "persistence"
	}
}

// writeError maps the service error taxonomy onto HTTP status codes.
// Persistence failures are reported without internal detail.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)

	status := http.StatusInternalServerError
	message := err.Error()
	switch kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindConflict:
		status = http.StatusConflict
	default:
		h.logger.Error().Err(err).Msg("operation failed")
		message = "internal error"
	}

	writeJSON(w, status, errorResponse{Error: message, Kind: kindLabel(kind)})
}

func (h *HTTPHandler) badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message, Kind: kindLabel(service.KindValidation)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func loanToJSON(l domain.Loan) map[string]any {
	out := map[string]any{
		"id":          l.ID,
		"borrower_id": l.BorrowerID,
		"copy_id":     l.CopyID,
		"item_id":     l.ItemID,
		"loan_date":   l.LoanDate.Format(dateLayout),
		"due_date":    l.DueDate.Format(dateLayout),
		"state":       l.State,
	}
	if l.ReturnDate != nil {
		out["return_date"] = l.ReturnDate.Format(dateLayout)
	}
	return out
}

func loansToJSON(loans []domain.Loan) []map[string]any {
	out := make([]map[string]any, 0, len(loans))
	for _, l := range loans {
		out = append(out, loanToJSON(l))
	}
	return out
}

func fineToJSON(f domain.Fine) map[string]any {
	out := map[string]any{
		"id":           f.ID,
		"loan_id":      f.LoanID,
		"borrower_id":  f.BorrowerID,
		"kind":         f.Kind,
		"amount_cents": f.AmountCents,
		"status":       f.Status,
		"note":         f.Note,
		"created_at":   f.CreatedAt.Format(time.RFC3339),
	}
	if f.SettledAt != nil {
		out["settled_at"] = f.SettledAt.Format(time.RFC3339)
	}
	return out
}

func copyToJSON(c domain.Copy) map[string]any {
	return map[string]any{
		"id":      c.ID,
		"item_id": c.ItemID,
		"barcode": c.Barcode,
		"state":   c.State,
	}
}
