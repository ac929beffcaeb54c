package basket

import (
	"context"
	"fmt"

	"github.com/MarcGrol/basketbackend/lib/myerrors"
	"github.com/MarcGrol/basketbackend/lib/mylog"
	"github.com/MarcGrol/basketbackend/services/basket/basketevents"
	"github.com/MarcGrol/basketbackend/services/basket/basketmodel"
	"github.com/MarcGrol/basketbackend/services/ledger"
)

func (s *service) getBasket(c context.Context, userID string) (basketmodel.Basket, error) {
	s.logger.Log(c, userID, mylog.SeverityInfo, "Fetch basket of user %s", userID)

	account, err := s.ledger.GetAccount(c, userID)
	if err != nil {
		return basketmodel.Basket{}, err
	}

	items, err := s.basketStore.ListItems(c, userID)
	if err != nil {
		return basketmodel.Basket{}, myerrors.NewInternalError(err)
	}

	return composeBasket(userID, account, items), nil
}

func (s *service) addItem(c context.Context, userID string, productID string, item basketmodel.Item) (basketmodel.Basket, error) {
	s.logger.Log(c, userID, mylog.SeverityInfo, "Add product %s to basket of user %s", productID, userID)

	if item.ProductID != productID {
		return basketmodel.Basket{}, myerrors.NewInvalidInputErrorf("productId %s in path does not match productId %s in payload", productID, item.ProductID)
	}

	unlock := s.userLocks.lock(userID)
	defer unlock()

	items, err := s.basketStore.ListItems(c, userID)
	if err != nil {
		return basketmodel.Basket{}, myerrors.NewInternalError(err)
	}
	if containsProduct(items, productID) {
		return basketmodel.Basket{}, myerrors.NewConflictError(fmt.Errorf("product %s already exists in basket of user %s", productID, userID))
	}
	if len(items) >= maxItemsPerBasket {
		return basketmodel.Basket{}, myerrors.NewInvalidInputErrorf("basket cannot hold more than %d products", maxItemsPerBasket)
	}

	// create-if-absent: closes the race between two concurrent adds of the
	// same product that both passed the checks above
	err = s.basketStore.InsertItem(c, userID, item)
	if err != nil {
		return basketmodel.Basket{}, err
	}

	err = s.basketStore.RefreshExpiry(c, userID)
	if err != nil {
		return basketmodel.Basket{}, myerrors.NewInternalError(err)
	}

	return s.getBasket(c, userID)
}

func (s *service) removeItem(c context.Context, userID string, productID string) (basketmodel.Basket, error) {
	s.logger.Log(c, userID, mylog.SeverityInfo, "Remove product %s from basket of user %s", productID, userID)

	unlock := s.userLocks.lock(userID)
	defer unlock()

	items, err := s.basketStore.ListItems(c, userID)
	if err != nil {
		return basketmodel.Basket{}, myerrors.NewInternalError(err)
	}
	if !containsProduct(items, productID) {
		return basketmodel.Basket{}, myerrors.NewNotFoundError(fmt.Errorf("product %s not found in basket of user %s", productID, userID))
	}

	err = s.basketStore.DeleteItem(c, userID, productID)
	if err != nil {
		return basketmodel.Basket{}, myerrors.NewInternalError(err)
	}

	err = s.basketStore.RefreshExpiry(c, userID)
	if err != nil {
		return basketmodel.Basket{}, myerrors.NewInternalError(err)
	}

	return s.getBasket(c, userID)
}

func (s *service) changeCount(c context.Context, userID string, item basketmodel.Item) (basketmodel.Basket, error) {
	s.logger.Log(c, userID, mylog.SeverityInfo, "Change count of product %s in basket of user %s by %d", item.ProductID, userID, item.Count)

	unlock := s.userLocks.lock(userID)
	defer unlock()

	// the payload count is a delta: the stored count is incremented, not overwritten
	_, err := s.basketStore.IncrementCount(c, userID, item.ProductID, item.Count)
	if err != nil {
		return basketmodel.Basket{}, err
	}

	err = s.basketStore.RefreshExpiry(c, userID)
	if err != nil {
		return basketmodel.Basket{}, myerrors.NewInternalError(err)
	}

	return s.getBasket(c, userID)
}

func (s *service) clearBasket(c context.Context, userID string) error {
	s.logger.Log(c, userID, mylog.SeverityInfo, "Clear basket of user %s", userID)

	unlock := s.userLocks.lock(userID)
	defer unlock()

	err := s.basketStore.DeleteAll(c, userID)
	if err != nil {
		return myerrors.NewInternalError(err)
	}

	return nil
}

func (s *service) checkout(c context.Context, userID string) (string, error) {
	s.logger.Log(c, userID, mylog.SeverityInfo, "Checkout basket of user %s", userID)

	unlock := s.userLocks.lock(userID)
	defer unlock()

	items, err := s.basketStore.ListItems(c, userID)
	if err != nil {
		return "", myerrors.NewInternalError(err)
	}
	totalPrice := basketmodel.TotalPrice(items)
	if totalPrice == 0 {
		return "", myerrors.NewInvalidInputErrorf("basket of user %s is empty", userID)
	}

	orderUID := s.uuider.Create()

	// On debit failure the basket is left untouched and the error propagates
	_, err = s.ledger.Debit(c, userID, totalPrice)
	if err != nil {
		return "", err
	}

	err = s.basketStore.DeleteAll(c, userID)
	if err != nil {
		// compensate: a debit must never stand without its basket cleared
		_, creditErr := s.ledger.Credit(c, userID, totalPrice)
		if creditErr != nil {
			s.logger.Log(c, userID, mylog.SeverityError, "Error compensating debit of %d for user %s: %s", totalPrice, userID, creditErr)
		}
		return "", myerrors.NewInternalError(err)
	}

	err = s.publisher.Publish(c, basketevents.TopicName, basketevents.BasketCheckedOut{
		UserID:       userID,
		OrderUID:     orderUID,
		TotalPrice:   totalPrice,
		CheckedOutAt: s.nower.Now(),
	})
	if err != nil {
		// checkout already committed: do not fail the request over the event
		s.logger.Log(c, userID, mylog.SeverityWarn, "Error publishing checkout-event for user %s: %s", userID, err)
	}

	s.logger.Log(c, userID, mylog.SeverityInfo, "Checked out basket of user %s: order %s, amount %d", userID, orderUID, totalPrice)

	return orderUID, nil
}

func composeBasket(userID string, account ledger.Account, items []basketmodel.Item) basketmodel.Basket {
	totalPrice := basketmodel.TotalPrice(items)

	return basketmodel.Basket{
		UserID:           userID,
		Items:            items,
		TotalPrice:       totalPrice,
		RemainingBalance: account.Balance - totalPrice,
	}
}

func containsProduct(items []basketmodel.Item, productID string) bool {
	for _, item := range items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}
