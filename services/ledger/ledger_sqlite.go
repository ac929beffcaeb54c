package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/MarcGrol/basketbackend/lib/myerrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id       TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	balance_cents INTEGER NOT NULL
);`

type sqliteLedger struct {
	db *sql.DB
}

func newSqliteLedger(c context.Context, dbFile string) (*sqliteLedger, func(), error) {
	// busy timeout + WAL for concurrent request handling
	db, err := sql.Open("sqlite", dbFile+"?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL")
	if err != nil {
		return nil, nil, fmt.Errorf("error opening ledger database %s: %s", dbFile, err)
	}

	_, err = db.ExecContext(c, schema)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("error migrating ledger database %s: %s", dbFile, err)
	}

	return &sqliteLedger{
			db: db,
		}, func() {
			db.Close()
		}, nil
}

func (l *sqliteLedger) GetAccount(c context.Context, userID string) (Account, error) {
	var account Account
	err := l.db.QueryRowContext(c,
		`SELECT user_id, name, balance_cents FROM accounts WHERE user_id = ?`, userID).
		Scan(&account.UserID, &account.Name, &account.Balance)
	if err == sql.ErrNoRows {
		return Account{}, myerrors.NewNotFoundError(fmt.Errorf("account of user %s not found", userID))
	}
	if err != nil {
		return Account{}, myerrors.NewInternalError(err)
	}

	return account, nil
}

func (l *sqliteLedger) CreateAccount(c context.Context, account Account) error {
	_, err := l.db.ExecContext(c, `
		INSERT INTO accounts(user_id, name, balance_cents)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, account.UserID, account.Name, account.Balance)
	if err != nil {
		return myerrors.NewInternalError(err)
	}

	return nil
}

func (l *sqliteLedger) Debit(c context.Context, userID string, amount int) (Account, error) {
	return l.adjustBalance(c, userID, -amount)
}

func (l *sqliteLedger) Credit(c context.Context, userID string, amount int) (Account, error) {
	return l.adjustBalance(c, userID, amount)
}

func (l *sqliteLedger) adjustBalance(c context.Context, userID string, delta int) (Account, error) {
	tx, err := l.db.BeginTx(c, nil)
	if err != nil {
		return Account{}, myerrors.NewInternalError(err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(c,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE user_id = ?`, delta, userID)
	if err != nil {
		return Account{}, myerrors.NewInternalError(err)
	}
	rowCount, err := result.RowsAffected()
	if err != nil {
		return Account{}, myerrors.NewInternalError(err)
	}
	if rowCount == 0 {
		return Account{}, myerrors.NewNotFoundError(fmt.Errorf("account of user %s not found", userID))
	}

	var account Account
	err = tx.QueryRowContext(c,
		`SELECT user_id, name, balance_cents FROM accounts WHERE user_id = ?`, userID).
		Scan(&account.UserID, &account.Name, &account.Balance)
	if err != nil {
		return Account{}, myerrors.NewInternalError(err)
	}

	err = tx.Commit()
	if err != nil {
		return Account{}, myerrors.NewInternalError(err)
	}

	return account, nil
}
