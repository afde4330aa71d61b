package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"assofin/internal/core"
	"assofin/internal/ports"

	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestImportCategorizesRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addRule(t, f.courses, "carrefour", 5)
	f.addRule(t, f.dons, "don", 5)
	svc := NewImportService(f.tx)

	buf := workbook(t,
		[]any{"Date", "Libellé", "Montant"},
		[]any{"2024-04-02", "CB CARREFOUR", "-23,40"},
		[]any{"2024-04-03", "VIR DON ANONYME", "150"},
		[]any{"2024-04-04", "", "12"},
		[]any{"2024-04-05", "FRAIS TENUE COMPTE", "-3"},
	)
	res, err := svc.Import(ctx, f.account.ID, buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 3 || res.Failed != 0 || res.Skipped != 1 {
		t.Fatalf("result = %+v", res)
	}

	list, _ := f.store.ListTransactions(ctx, ports.TransactionFilter{})
	byDesc := map[string]core.Transaction{}
	for _, tx := range list {
		byDesc[tx.Description] = tx
	}
	if byDesc["CB CARREFOUR"].CategoryID != f.courses.ID || byDesc["CB CARREFOUR"].Type != core.Expense {
		t.Errorf("carrefour row = %+v", byDesc["CB CARREFOUR"])
	}
	if byDesc["VIR DON ANONYME"].CategoryID != f.dons.ID {
		t.Errorf("don row = %+v", byDesc["VIR DON ANONYME"])
	}
	if byDesc["FRAIS TENUE COMPTE"].IsCategorized() {
		t.Errorf("unmatched row categorized")
	}

	acc, _ := f.store.GetAccount(ctx, f.account.ID)
	if acc.Balance.Cents != 15000-2340-300 {
		t.Fatalf("balance = %d", acc.Balance.Cents)
	}
}

func TestImportRowErrorsAreCounted(t *testing.T) {
	f := newFixture(t)
	svc := NewImportService(f.tx)
	buf := workbook(t, []any{"Date", "Description", "Montant"}, []any{"2024-01-01", "x", "5"})

	res, err := svc.Import(context.Background(), "missing-account", buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Imported != 0 || res.Failed != 1 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestImportPreviewAndEmpty(t *testing.T) {
	f := newFixture(t)
	svc := NewImportService(f.tx)

	rows := [][]any{{"Date", "Description", "Montant"}}
	for i := 0; i < 7; i++ {
		rows = append(rows, []any{"2024-01-01", "ligne", i + 1})
	}
	res, err := svc.Preview(workbook(t, rows...))
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(res.Rows) != 5 {
		t.Fatalf("preview rows = %d", len(res.Rows))
	}

	_, err = svc.Preview(workbook(t, []any{"Date", "Description", "Montant"}))
	if !errors.Is(err, ErrNoImportRows) {
		t.Fatalf("expected ErrNoImportRows, got %v", err)
	}
	if _, err := svc.Import(context.Background(), "", workbook(t)); !errors.Is(err, core.ErrEmptyAccount) {
		t.Fatalf("expected ErrEmptyAccount, got %v", err)
	}
}

func TestImportTemplate(t *testing.T) {
	var buf bytes.Buffer
	if err := NewImportService(nil).Template(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("empty template")
	}
}
