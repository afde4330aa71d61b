package http

import (
	"net/http"
	"strings"

	"assofin/internal/services"
)

type ruleRequest struct {
	CategoryID      string `json:"category_id"`
	Keywords        any    `json:"keywords"`
	TransactionType string `json:"transaction_type"`
	Priority        int    `json:"priority"`
}

// keywords accepts either "a, b" or ["a", "b"].
func (req ruleRequest) keywords() (string, error) {
	switch v := req.Keywords.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, k := range v {
			s, ok := k.(string)
			if !ok {
				return "", badRequest("keywords must be strings")
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	default:
		return "", badRequest("keywords must be a string or a list of strings")
	}
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.deps.Rules.List(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]ruleView, len(rules))
	for i, rule := range rules {
		out[i] = newRuleView(rule)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req, false); err != nil {
		fail(w, r, err)
		return
	}
	keywords, err := req.keywords()
	if err != nil {
		fail(w, r, err)
		return
	}
	rule, err := s.deps.Rules.Create(r.Context(), services.RuleInput{
		CategoryID:      req.CategoryID,
		Keywords:        keywords,
		TransactionType: req.TransactionType,
		Priority:        req.Priority,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRuleView(rule))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Rules.Delete(r.Context(), pathID(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categorizeRequest struct {
	TransactionIDs []string `json:"transaction_ids"`
}

// handleCategorize applies the rules to the given transactions, or to every
// uncategorized one when none are given. With ?async=true the run is queued.
func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req categorizeRequest
	if err := decodeJSON(r, &req, true); err != nil {
		fail(w, r, err)
		return
	}

	if queryBool(r, "async") {
		jobID, err := s.deps.Categorize.Enqueue(r.Context(), req.TransactionIDs)
		if err != nil {
			fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
		return
	}

	res, err := s.deps.Categorize.Apply(r.Context(), req.TransactionIDs)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categorizeView{Result: res, Message: res.Message()})
}
