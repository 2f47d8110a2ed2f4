package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"spese-api/internal/core"
)

// createExpenseRequest keeps amount a pointer so a missing amount can be
// told apart from zero.
type createExpenseRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description"`
	CategoryID  *int64           `json:"category_id"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, &core.ValidationError{Field: "amount", Message: "field required"})
		return
	}

	e, err := s.ledger.CreateExpense(r.Context(), currentUser(r).ID, core.ExpenseInput{
		Amount:      *req.Amount,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePage(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	items, err := s.ledger.ListExpenses(r.Context(), currentUser(r).ID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Expense{}
	}
	writeJSON(w, r, http.StatusOK, items)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.ledger.GetExpense(r.Context(), currentUser(r).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// handleUpdateExpense serves both PUT and PATCH: only fields present in
// the body change.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var patch core.ExpensePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.ledger.UpdateExpense(r.Context(), currentUser(r).ID, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.ledger.DeleteExpense(r.Context(), currentUser(r).ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, messageBody{Message: "Expense deleted successfully"})
}
