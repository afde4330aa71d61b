package http

import (
	"net/http"
	"strconv"
	"time"

	"assofin/internal/core"
	"assofin/internal/ports"
	"assofin/internal/services"
)

const maxListLimit = 1000

type transactionRequest struct {
	AccountID   string `json:"account_id"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	CategoryID  string `json:"category_id"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		fail(w, r, err)
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		fail(w, r, err)
		return
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		fail(w, r, err)
		return
	}
	date := core.DateOf(time.Now())
	if req.Date != "" {
		if date, err = core.ParseDate(req.Date); err != nil {
			fail(w, r, err)
			return
		}
	}

	t, err := s.deps.Transactions.Create(r.Context(), services.TransactionInput{
		AccountID:   req.AccountID,
		Amount:      core.Money{Cents: cents},
		Type:        typ,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionView(t))
}

type transactionPatchRequest struct {
	AccountID   *string `json:"account_id"`
	Amount      *string `json:"amount"`
	Type        *string `json:"type"`
	CategoryID  *string `json:"category_id"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
}

func (req transactionPatchRequest) toPatch() (services.TransactionPatch, error) {
	p := services.TransactionPatch{
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Description: req.Description,
	}
	if req.Amount != nil {
		cents, err := core.ParseDecimalToCents(*req.Amount)
		if err != nil {
			return p, err
		}
		p.Amount = &core.Money{Cents: cents}
	}
	if req.Type != nil {
		typ, err := core.ParseTransactionType(*req.Type)
		if err != nil {
			return p, err
		}
		p.Type = &typ
	}
	if req.Date != nil {
		d, err := core.ParseDate(*req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	return p, nil
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPatchRequest
	if err := decodeJSON(r, &req, false); err != nil {
		fail(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		fail(w, r, err)
		return
	}
	t, err := s.deps.Transactions.Update(r.Context(), pathID(r), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionView(t))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Transactions.Get(r.Context(), pathID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionView(t))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Transactions.Delete(r.Context(), pathID(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := transactionFilter(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	txs, err := s.deps.Transactions.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]transactionView, len(txs))
	for i, t := range txs {
		out[i] = newTransactionView(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func transactionFilter(r *http.Request) (ports.TransactionFilter, error) {
	q := r.URL.Query()
	f := ports.TransactionFilter{
		AccountID:     q.Get("account_id"),
		Uncategorized: queryBool(r, "uncategorized"),
	}
	if v := q.Get("type"); v != "" {
		typ, err := core.ParseTransactionType(v)
		if err != nil {
			return f, badRequest("type must be income or expense")
		}
		f.Type = typ
	}
	if v := q.Get("since"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, badRequest("since must be YYYY-MM-DD")
		}
		f.Since = d
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return f, badRequest("limit must be between 1 and %d", maxListLimit)
		}
		f.Limit = n
	}
	return f, nil
}
