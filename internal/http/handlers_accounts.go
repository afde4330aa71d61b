package http

import (
	"net/http"
)

type nameTypeRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.deps.Accounts.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]accountView, len(accounts))
	for i, a := range accounts {
		out[i] = newAccountView(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req nameTypeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		fail(w, r, err)
		return
	}
	a, err := s.deps.Accounts.Create(r.Context(), req.Name, req.Type)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountView(a))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Accounts.Delete(r.Context(), pathID(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Accounts.Balances(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalancesView(b))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.deps.Categories.List(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]categoryView, len(categories))
	for i, c := range categories {
		out[i] = newCategoryView(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameTypeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		fail(w, r, err)
		return
	}
	c, err := s.deps.Categories.Create(r.Context(), req.Name, req.Type)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryView(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Categories.Delete(r.Context(), pathID(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
