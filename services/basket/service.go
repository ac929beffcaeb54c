package basket

import (
	"github.com/MarcGrol/basketbackend/lib/mylog"
	"github.com/MarcGrol/basketbackend/lib/mymetrics"
	"github.com/MarcGrol/basketbackend/lib/mypublisher"
	"github.com/MarcGrol/basketbackend/lib/mytime"
	"github.com/MarcGrol/basketbackend/lib/myuuid"
	"github.com/MarcGrol/basketbackend/services/basket/store"
	"github.com/MarcGrol/basketbackend/services/ledger"
)

// a basket holds at most this many distinct products
const maxItemsPerBasket = 10

var metrics = mymetrics.NewOperationMetrics("basket")

type service struct {
	basketStore store.BasketStorer
	ledger      ledger.Ledger
	publisher   mypublisher.Publisher
	nower       mytime.Nower
	uuider      myuuid.UUIDer
	logger      mylog.Logger
	userLocks   *userLocker
}

// Use dependency injection to isolate the infrastructure and ease testing
func newService(basketStore store.BasketStorer, accountLedger ledger.Ledger, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger, pub mypublisher.Publisher) *service {
	return &service{
		basketStore: basketStore,
		ledger:      accountLedger,
		publisher:   pub,
		nower:       nower,
		uuider:      uuider,
		logger:      logger,
		userLocks:   newUserLocker(),
	}
}
