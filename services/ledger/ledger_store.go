package ledger

import (
	"context"
	"fmt"

	"github.com/MarcGrol/basketbackend/lib/myerrors"
	"github.com/MarcGrol/basketbackend/lib/mystore"
)

// storeLedger keeps accounts in the generic entity store: in-memory when
// running locally, cloud datastore when deployed.
type storeLedger struct {
	accountStore mystore.Store[Account]
}

func newStoreLedger(c context.Context) (*storeLedger, func(), error) {
	accountStore, cleanup, err := mystore.New[Account](c)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating account-store: %s", err)
	}

	return &storeLedger{
		accountStore: accountStore,
	}, cleanup, nil
}

func (l *storeLedger) GetAccount(c context.Context, userID string) (Account, error) {
	account, found, err := l.accountStore.Get(c, userID)
	if err != nil {
		return Account{}, myerrors.NewInternalError(err)
	}
	if !found {
		return Account{}, myerrors.NewNotFoundError(fmt.Errorf("account of user %s not found", userID))
	}

	return account, nil
}

func (l *storeLedger) CreateAccount(c context.Context, account Account) error {
	return l.accountStore.RunInTransaction(c, func(c context.Context) error {
		_, found, err := l.accountStore.Get(c, account.UserID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if found {
			return nil
		}

		err = l.accountStore.Put(c, account.UserID, account)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
}

func (l *storeLedger) Debit(c context.Context, userID string, amount int) (Account, error) {
	return l.adjustBalance(c, userID, -amount)
}

func (l *storeLedger) Credit(c context.Context, userID string, amount int) (Account, error) {
	return l.adjustBalance(c, userID, amount)
}

func (l *storeLedger) adjustBalance(c context.Context, userID string, delta int) (Account, error) {
	var account Account
	err := l.accountStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		account, found, err = l.accountStore.Get(c, userID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("account of user %s not found", userID))
		}

		account.Balance += delta

		err = l.accountStore.Put(c, userID, account)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return Account{}, err
	}

	return account, nil
}
