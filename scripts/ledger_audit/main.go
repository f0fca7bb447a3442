// Command ledger_audit checks the payment ledger for inconsistencies that
// should never appear when every mutation goes through the API: negative
// balances, paid lines with money left, settlements whose receipt totals do
// not add up. Run it against a live database before month-end reporting.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edupagos/colegio-api/internal/ledger"
	"github.com/edupagos/colegio-api/pkg/config"
	"github.com/edupagos/colegio-api/pkg/database"
)

type finding struct {
	Check  string
	Entity string
	Detail string
}

func main() {
	var timeout time.Duration
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall audit timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var findings []finding
	for _, check := range []func(context.Context, *sqlx.DB) ([]finding, error){
		checkNegativeBalances,
		checkPaidWithBalance,
		checkOpenWithoutBalance,
		checkOrphanPayments,
		checkReceiptTotals,
	} {
		results, err := check(ctx, db)
		if err != nil {
			log.Fatalf("audit query failed: %v", err)
		}
		findings = append(findings, results...)
	}

	printReport(findings)
	if len(findings) > 0 {
		os.Exit(1)
	}
}

func checkNegativeBalances(ctx context.Context, db *sqlx.DB) ([]finding, error) {
	var rows []struct {
		ID     string  `db:"id"`
		Amount float64 `db:"amount"`
	}
	err := db.SelectContext(ctx, &rows, `SELECT id, amount FROM student_debts WHERE amount < 0`)
	if err != nil {
		return nil, err
	}
	var findings []finding
	for _, row := range rows {
		findings = append(findings, finding{
			Check:  "negative_balance",
			Entity: row.ID,
			Detail: fmt.Sprintf("debt balance is %s Gs", ledger.FormatGs(row.Amount)),
		})
	}
	return findings, nil
}

func checkPaidWithBalance(ctx context.Context, db *sqlx.DB) ([]finding, error) {
	var rows []struct {
		ID     string  `db:"id"`
		Amount float64 `db:"amount"`
	}
	err := db.SelectContext(ctx, &rows,
		`SELECT id, amount FROM student_debts WHERE status = 'paid' AND amount > $1`, ledger.Epsilon)
	if err != nil {
		return nil, err
	}
	var findings []finding
	for _, row := range rows {
		findings = append(findings, finding{
			Check:  "paid_with_balance",
			Entity: row.ID,
			Detail: fmt.Sprintf("paid debt still owes %s Gs", ledger.FormatGs(row.Amount)),
		})
	}
	return findings, nil
}

func checkOpenWithoutBalance(ctx context.Context, db *sqlx.DB) ([]finding, error) {
	var rows []struct {
		ID     string `db:"id"`
		Status string `db:"status"`
	}
	err := db.SelectContext(ctx, &rows,
		`SELECT id, status FROM student_debts WHERE status IN ('pending', 'partial') AND amount <= $1`, ledger.Epsilon)
	if err != nil {
		return nil, err
	}
	var findings []finding
	for _, row := range rows {
		findings = append(findings, finding{
			Check:  "open_without_balance",
			Entity: row.ID,
			Detail: fmt.Sprintf("%s debt has nothing left to collect", row.Status),
		})
	}
	return findings, nil
}

func checkOrphanPayments(ctx context.Context, db *sqlx.DB) ([]finding, error) {
	var rows []struct {
		ID     string `db:"id"`
		DebtID string `db:"debt_id"`
	}
	err := db.SelectContext(ctx, &rows, `
		SELECT p.id, p.debt_id
		FROM payments p
		WHERE p.debt_id IS NOT NULL
		  AND NOT EXISTS (SELECT 1 FROM student_debts d WHERE d.id = p.debt_id)`)
	if err != nil {
		return nil, err
	}
	var findings []finding
	for _, row := range rows {
		findings = append(findings, finding{
			Check:  "orphan_payment",
			Entity: row.ID,
			Detail: fmt.Sprintf("payment references missing debt %s", row.DebtID),
		})
	}
	return findings, nil
}

// checkReceiptTotals flags settlements where an active row coexists with a
// cancelled one under the same receipt. Cancellation happens per payment row,
// so a mixed receipt means someone reversed part of a settlement by hand.
func checkReceiptTotals(ctx context.Context, db *sqlx.DB) ([]finding, error) {
	var rows []struct {
		ReceiptNumber string `db:"receipt_number"`
		Active        int    `db:"active"`
		Cancelled     int    `db:"cancelled"`
	}
	err := db.SelectContext(ctx, &rows, `
		SELECT receipt_number,
		       COUNT(*) FILTER (WHERE status = 'active') AS active,
		       COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled
		FROM payments
		WHERE receipt_number IS NOT NULL
		GROUP BY receipt_number
		HAVING COUNT(*) FILTER (WHERE status = 'active') > 0
		   AND COUNT(*) FILTER (WHERE status = 'cancelled') > 0`)
	if err != nil {
		return nil, err
	}
	var findings []finding
	for _, row := range rows {
		findings = append(findings, finding{
			Check:  "mixed_receipt",
			Entity: row.ReceiptNumber,
			Detail: fmt.Sprintf("%d active and %d cancelled rows share the receipt", row.Active, row.Cancelled),
		})
	}
	return findings, nil
}

func printReport(findings []finding) {
	fmt.Println("Ledger Audit Report")
	fmt.Println("===================")
	if len(findings) == 0 {
		fmt.Println("No inconsistencies found.")
		return
	}
	for _, f := range findings {
		fmt.Printf("[%s] %s: %s\n", f.Check, f.Entity, f.Detail)
	}
	fmt.Printf("Total findings: %d\n", len(findings))
}
