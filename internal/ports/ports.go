package ports

import (
	"context"
	"errors"

	"assofin/internal/core"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// TransactionFilter narrows transaction listings. Zero values mean "any".
type TransactionFilter struct {
	AccountID     string
	Type          core.TransactionType
	Uncategorized bool
	Since         core.Date
	Limit         int
}

// Ports for outbound adapters.
type (
	RuleReader interface {
		// ListRules returns every rule ordered by priority descending.
		ListRules(ctx context.Context) ([]core.CategorizationRule, error)
	}

	RuleWriter interface {
		CreateRule(ctx context.Context, r core.CategorizationRule) (core.CategorizationRule, error)
		DeleteRule(ctx context.Context, id string) error
	}

	CategoryReader interface {
		GetCategory(ctx context.Context, id string) (core.Category, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	CategoryWriter interface {
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, id string) error
	}

	TransactionReader interface {
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// GetTransactionsByIDs returns the found transactions in the order of ids.
		// Unknown ids are skipped.
		GetTransactionsByIDs(ctx context.Context, ids []string) ([]core.Transaction, error)
		ListUncategorized(ctx context.Context) ([]core.Transaction, error)
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	// CategoryAssigner writes the category of a single transaction and nothing else.
	CategoryAssigner interface {
		SetTransactionCategory(ctx context.Context, transactionID, categoryID string) error
	}

	AccountReader interface {
		GetAccount(ctx context.Context, id string) (core.Account, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}

	AccountWriter interface {
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		DeleteAccount(ctx context.Context, id string) error
		// RecomputeBalance sets the account balance from its transactions.
		RecomputeBalance(ctx context.Context, accountID string) error
	}

	// Store is the full persistence surface implemented by the SQLite and
	// in-memory backends.
	Store interface {
		RuleReader
		RuleWriter
		CategoryReader
		CategoryWriter
		TransactionReader
		TransactionWriter
		CategoryAssigner
		AccountReader
		AccountWriter
		Close() error
	}
)
