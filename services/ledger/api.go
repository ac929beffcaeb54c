package ledger

import (
	"context"
	"os"
)

// Account is the durable balance record of a user. Its balance is only
// mutated by checkout debits and their compensations.
type Account struct {
	UserID  string
	Name    string
	Balance int // cents
}

//go:generate mockgen -source=api.go -package ledger -destination ledger_mock.go Ledger
type Ledger interface {
	// GetAccount fails with a not-found error when the user is unknown.
	GetAccount(c context.Context, userID string) (Account, error)

	// CreateAccount registers a new account; existing accounts are left untouched.
	CreateAccount(c context.Context, account Account) error

	// Debit atomically subtracts amount from the balance and persists it.
	Debit(c context.Context, userID string, amount int) (Account, error)

	// Credit atomically adds amount to the balance and persists it. Used to
	// compensate a debit whose checkout could not be completed.
	Credit(c context.Context, userID string, amount int) (Account, error)
}

func New(c context.Context) (Ledger, func(), error) {
	if dbFile := os.Getenv("LEDGER_DB_FILE"); dbFile != "" {
		return newSqliteLedger(c, dbFile)
	}

	return newStoreLedger(c)
}
