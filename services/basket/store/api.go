package store

import (
	"context"
	"time"

	"github.com/MarcGrol/basketbackend/services/basket/basketmodel"
)

// DefaultTTL is the idle-expiry window of a basket: any mutation slides the
// window for all items of that user at once.
const DefaultTTL = 120 * time.Second

//go:generate mockgen -source=api.go -package store -destination store_mock.go BasketStorer
type BasketStorer interface {
	// ListItems returns all non-expired item records of the user.
	ListItems(c context.Context, userID string) ([]basketmodel.Item, error)

	// InsertItem creates the record for item.ProductID, or fails with a
	// conflict when a record with that productID already exists.
	InsertItem(c context.Context, userID string, item basketmodel.Item) error

	// UpsertItem creates or fully overwrites the record for item.ProductID.
	UpsertItem(c context.Context, userID string, item basketmodel.Item) error

	// IncrementCount atomically adds delta to the stored count and returns
	// the updated record. Fails with not-found when the product is absent.
	IncrementCount(c context.Context, userID string, productID string, delta int) (basketmodel.Item, error)

	// DeleteItem removes one record. Absence is not reported: callers that
	// need to report it must check existence first.
	DeleteItem(c context.Context, userID string, productID string) error

	// DeleteAll removes every item record of the user.
	DeleteAll(c context.Context, userID string) error

	// RefreshExpiry resets the idle-TTL on every current record of the user.
	RefreshExpiry(c context.Context, userID string) error
}

func New(c context.Context, ttl time.Duration) (BasketStorer, func(), error) {
	return newInMemoryBasketStore(c, ttl)
}
