package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/MarcGrol/basketbackend/lib/myerrors"
	"github.com/MarcGrol/basketbackend/services/basket/basketmodel"
)

type itemKey struct {
	userID    string
	productID string
}

// inMemoryBasketStore keeps item records in an expirable cache: eviction of
// idle records runs autonomously in the background, application code only
// resets timers. An explicit per-user index of productIDs is maintained next
// to the records so enumeration does not scan the whole keyspace.
type inMemoryBasketStore struct {
	opsMutex sync.Mutex

	records *expirable.LRU[itemKey, basketmodel.Item]

	indexMutex sync.Mutex
	index      map[string]map[string]struct{}
}

func newInMemoryBasketStore(c context.Context, ttl time.Duration) (*inMemoryBasketStore, func(), error) {
	s := &inMemoryBasketStore{
		index: map[string]map[string]struct{}{},
	}

	// size 0 means unbounded: the basket capacity rule is enforced by the
	// service, not by cache eviction
	s.records = expirable.NewLRU[itemKey, basketmodel.Item](0, s.onEvict, ttl)

	return s, func() {}, nil
}

// onEvict is invoked by the cache on expiry and on removal. It must not
// touch opsMutex: the cache calls it while holding its own internal lock.
func (s *inMemoryBasketStore) onEvict(key itemKey, _ basketmodel.Item) {
	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()

	products, found := s.index[key.userID]
	if !found {
		return
	}
	delete(products, key.productID)
	if len(products) == 0 {
		delete(s.index, key.userID)
	}
}

func (s *inMemoryBasketStore) addToIndex(userID string, productID string) {
	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()

	products, found := s.index[userID]
	if !found {
		products = map[string]struct{}{}
		s.index[userID] = products
	}
	products[productID] = struct{}{}
}

func (s *inMemoryBasketStore) productIDs(userID string) []string {
	s.indexMutex.Lock()
	defer s.indexMutex.Unlock()

	productIDs := make([]string, 0, len(s.index[userID]))
	for productID := range s.index[userID] {
		productIDs = append(productIDs, productID)
	}
	return productIDs
}

func (s *inMemoryBasketStore) ListItems(c context.Context, userID string) ([]basketmodel.Item, error) {
	s.opsMutex.Lock()
	defer s.opsMutex.Unlock()

	items := []basketmodel.Item{}
	for _, productID := range s.productIDs(userID) {
		// Get reports expired-but-not-yet-evicted records as absent
		item, found := s.records.Get(itemKey{userID: userID, productID: productID})
		if !found {
			continue
		}
		items = append(items, item)
	}
	basketmodel.Sort(items)

	return items, nil
}

func (s *inMemoryBasketStore) InsertItem(c context.Context, userID string, item basketmodel.Item) error {
	s.opsMutex.Lock()
	defer s.opsMutex.Unlock()

	key := itemKey{userID: userID, productID: item.ProductID}
	_, found := s.records.Get(key)
	if found {
		return myerrors.NewConflictError(fmt.Errorf("product %s already exists in basket of user %s", item.ProductID, userID))
	}

	s.records.Add(key, item)
	s.addToIndex(userID, item.ProductID)

	return nil
}

func (s *inMemoryBasketStore) UpsertItem(c context.Context, userID string, item basketmodel.Item) error {
	s.opsMutex.Lock()
	defer s.opsMutex.Unlock()

	s.records.Add(itemKey{userID: userID, productID: item.ProductID}, item)
	s.addToIndex(userID, item.ProductID)

	return nil
}

func (s *inMemoryBasketStore) IncrementCount(c context.Context, userID string, productID string, delta int) (basketmodel.Item, error) {
	s.opsMutex.Lock()
	defer s.opsMutex.Unlock()

	key := itemKey{userID: userID, productID: productID}
	item, found := s.records.Get(key)
	if !found {
		return basketmodel.Item{}, myerrors.NewNotFoundError(fmt.Errorf("product %s not found in basket of user %s", productID, userID))
	}

	item.Count += delta
	s.records.Add(key, item)

	return item, nil
}

func (s *inMemoryBasketStore) DeleteItem(c context.Context, userID string, productID string) error {
	s.opsMutex.Lock()
	defer s.opsMutex.Unlock()

	s.records.Remove(itemKey{userID: userID, productID: productID})

	return nil
}

func (s *inMemoryBasketStore) DeleteAll(c context.Context, userID string) error {
	s.opsMutex.Lock()
	defer s.opsMutex.Unlock()

	for _, productID := range s.productIDs(userID) {
		s.records.Remove(itemKey{userID: userID, productID: productID})
	}

	return nil
}

func (s *inMemoryBasketStore) RefreshExpiry(c context.Context, userID string) error {
	s.opsMutex.Lock()
	defer s.opsMutex.Unlock()

	for _, productID := range s.productIDs(userID) {
		key := itemKey{userID: userID, productID: productID}
		item, found := s.records.Get(key)
		if !found {
			continue
		}
		// re-adding resets the idle-TTL of the record
		s.records.Add(key, item)
	}

	return nil
}
