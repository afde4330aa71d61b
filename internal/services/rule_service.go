package services

import (
	"context"
	"fmt"

	"assofin/internal/core"
	"assofin/internal/ports"
)

type RuleStore interface {
	ports.RuleReader
	ports.RuleWriter
	ports.CategoryReader
}

// RuleService validates rules before they reach the store. The engine
// itself trusts stored rules.
type RuleService struct {
	store RuleStore
}

func NewRuleService(store RuleStore) *RuleService {
	return &RuleService{store: store}
}

// RuleInput is a rule as typed by a user: keywords are comma separated and a
// zero priority means the default of 1.
type RuleInput struct {
	CategoryID      string
	Keywords        string
	TransactionType string
	Priority        int
}

func (s *RuleService) Create(ctx context.Context, in RuleInput) (core.CategorizationRule, error) {
	typ, err := core.ParseTransactionType(in.TransactionType)
	if err != nil {
		return core.CategorizationRule{}, err
	}
	if in.CategoryID == "" {
		return core.CategorizationRule{}, core.ErrEmptyCategory
	}
	keywords := core.ParseKeywords(in.Keywords)
	if len(keywords) == 0 {
		return core.CategorizationRule{}, core.ErrEmptyKeywords
	}
	priority := in.Priority
	if priority == 0 {
		priority = core.MinPriority
	}
	if err := core.ValidatePriority(priority); err != nil {
		return core.CategorizationRule{}, err
	}

	cat, err := s.store.GetCategory(ctx, in.CategoryID)
	if err != nil {
		return core.CategorizationRule{}, fmt.Errorf("category %s: %w", in.CategoryID, err)
	}
	if cat.Type != typ {
		return core.CategorizationRule{}, core.ErrCategoryTypeMismatch
	}

	rule, err := s.store.CreateRule(ctx, core.CategorizationRule{
		CategoryID:      cat.ID,
		Keywords:        keywords,
		TransactionType: typ,
		Priority:        priority,
	})
	if err != nil {
		return core.CategorizationRule{}, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

// List returns rules in evaluation order.
func (s *RuleService) List(ctx context.Context) ([]core.CategorizationRule, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *RuleService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return nil
}
