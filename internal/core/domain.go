package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	AccountBank   AccountType = "bank"
	AccountCash   AccountType = "cash"
	AccountGrants AccountType = "grants"
	AccountDues   AccountType = "dues"
)

const (
	MinPriority = 1
	MaxPriority = 10
)

// MaxDescriptionLength is counted in characters, not bytes.
const MaxDescriptionLength = 500

type (
	TransactionType string

	AccountType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		ID        string
		Name      string
		Type      AccountType
		Balance   Money // Derived from the account's transactions
		CreatedAt time.Time
	}

	Category struct {
		ID   string
		Name string
		Type TransactionType
	}

	Transaction struct {
		ID          string
		AccountID   string
		Amount      Money // Always positive; Type carries the direction
		Type        TransactionType
		CategoryID  string // Empty when uncategorized
		Description string
		Date        Date
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	CategorizationRule struct {
		ID              string
		CategoryID      string
		CategoryName    string // Joined for listings, not persisted on the rule
		Keywords        []string
		TransactionType TransactionType
		Priority        int
		CreatedAt       time.Time
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidAccountType   = errors.New("invalid account type")
	ErrEmptyAccount         = errors.New("empty account")
	ErrEmptyName            = errors.New("empty name")
	ErrEmptyCategory        = errors.New("empty category")
	ErrEmptyKeywords        = errors.New("empty keyword list")
	ErrInvalidPriority      = errors.New("priority must be between 1 and 10")
	ErrCategoryTypeMismatch = errors.New("category type does not match transaction type")
	ErrInvalidDate          = errors.New("invalid date")
	ErrDescriptionTooLong   = errors.New("description too long (max 500 characters)")
)

// ParseTransactionType validates a raw direction coming from a request or a row.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case Income, Expense:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(strings.ToLower(strings.TrimSpace(s))); t {
	case AccountBank, AccountCash, AccountGrants, AccountDues:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, s)
	}
}

// Signed returns the amount as it contributes to an account balance.
func (t Transaction) Signed() int64 {
	if t.Type == Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

func (t Transaction) IsCategorized() bool {
	return strings.TrimSpace(t.CategoryID) != ""
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if _, err := ParseAccountType(string(a.Type)); err != nil {
		return err
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrEmptyAccount
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func ValidatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return ErrInvalidPriority
	}
	return nil
}

// ParseKeywords splits comma separated input into the normalized keyword set
// stored on a rule: trimmed, lowercased, without empties or duplicates.
func ParseKeywords(raw string) []string {
	return NormalizeKeywords(strings.Split(raw, ","))
}

func NormalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func (r CategorizationRule) Validate() error {
	if strings.TrimSpace(r.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if len(NormalizeKeywords(r.Keywords)) == 0 {
		return ErrEmptyKeywords
	}
	if !r.TransactionType.Valid() {
		return ErrInvalidType
	}
	return ValidatePriority(r.Priority)
}

// ParseDate reads an ISO calendar day (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}
