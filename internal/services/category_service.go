package services

import (
	"context"
	"fmt"
	"strings"

	"assofin/internal/core"
	"assofin/internal/ports"
)

type CategoryStore interface {
	ports.CategoryReader
	ports.CategoryWriter
}

type CategoryService struct {
	store   CategoryStore
	reports Invalidator
}

func NewCategoryService(store CategoryStore, reports Invalidator) *CategoryService {
	if reports == nil {
		reports = noopInvalidator{}
	}
	return &CategoryService{store: store, reports: reports}
}

func (s *CategoryService) Create(ctx context.Context, name, txType string) (core.Category, error) {
	typ, err := core.ParseTransactionType(txType)
	if err != nil {
		return core.Category{}, err
	}
	c, err := s.store.CreateCategory(ctx, core.Category{Name: strings.TrimSpace(name), Type: typ})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// List returns all categories, or only those of txType when it is set.
func (s *CategoryService) List(ctx context.Context, txType string) ([]core.Category, error) {
	all, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if txType == "" {
		return all, nil
	}
	typ, err := core.ParseTransactionType(txType)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, c := range all {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out, nil
}

// Delete removes the category and its rules; transactions lose the category.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.reports.Invalidate()
	return nil
}
