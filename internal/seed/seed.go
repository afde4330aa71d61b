// Package seed loads default categories and categorization rules from YAML.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"assofin/internal/core"
	"assofin/internal/log"
	"assofin/internal/services"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaults []byte

type File struct {
	Categories []Category `yaml:"categories"`
}

type Category struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Rules []Rule `yaml:"rules"`
}

type Rule struct {
	Keywords []string `yaml:"keywords"`
	Priority int      `yaml:"priority"`
}

// Parse decodes a seed document and checks it can be applied.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse seed: %w", err)
	}
	seen := make(map[string]bool, len(f.Categories))
	for i, c := range f.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return File{}, fmt.Errorf("seed category %d: %w", i+1, core.ErrEmptyName)
		}
		if _, err := core.ParseTransactionType(c.Type); err != nil {
			return File{}, fmt.Errorf("seed category %q: %w", name, err)
		}
		if seen[strings.ToLower(name)] {
			return File{}, fmt.Errorf("seed category %q is listed twice", name)
		}
		seen[strings.ToLower(name)] = true
		for _, r := range c.Rules {
			if len(core.NormalizeKeywords(r.Keywords)) == 0 {
				return File{}, fmt.Errorf("seed category %q: %w", name, core.ErrEmptyKeywords)
			}
			if r.Priority != 0 {
				if err := core.ValidatePriority(r.Priority); err != nil {
					return File{}, fmt.Errorf("seed category %q: %w", name, err)
				}
			}
		}
	}
	return f, nil
}

// Load reads path, or the built-in defaults when path is empty.
func Load(path string) (File, error) {
	if path == "" {
		return Parse(defaults)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

type CategoryService interface {
	Create(ctx context.Context, name, txType string) (core.Category, error)
	List(ctx context.Context, txType string) ([]core.Category, error)
}

type RuleService interface {
	Create(ctx context.Context, in services.RuleInput) (core.CategorizationRule, error)
}

// Summary counts what Apply created.
type Summary struct {
	Categories int
	Rules      int
	Skipped    bool
}

// Apply creates the seed categories and their rules when no category exists
// yet. A store that already holds categories is left untouched.
func Apply(ctx context.Context, f File, categories CategoryService, rules RuleService, logger *log.Logger) (Summary, error) {
	existing, err := categories.List(ctx, "")
	if err != nil {
		return Summary{}, err
	}
	if len(existing) > 0 {
		logger.DebugContext(ctx, "Store already has categories, seed skipped", "categories", len(existing))
		return Summary{Skipped: true}, nil
	}

	var sum Summary
	for _, c := range f.Categories {
		cat, err := categories.Create(ctx, c.Name, c.Type)
		if err != nil {
			return sum, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
		sum.Categories++
		for _, r := range c.Rules {
			_, err := rules.Create(ctx, services.RuleInput{
				CategoryID:      cat.ID,
				Keywords:        strings.Join(r.Keywords, ","),
				TransactionType: string(cat.Type),
				Priority:        r.Priority,
			})
			if err != nil {
				return sum, fmt.Errorf("seed rule for %q: %w", c.Name, err)
			}
			sum.Rules++
		}
	}

	logger.InfoContext(ctx, "Seed data applied",
		log.FieldOperation, log.OpCreate,
		"categories", sum.Categories,
		"rules", sum.Rules)
	return sum, nil
}
