package basket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/basketbackend/lib/myerrors"
	"github.com/MarcGrol/basketbackend/lib/mypublisher"
	"github.com/MarcGrol/basketbackend/lib/mytime"
	"github.com/MarcGrol/basketbackend/lib/myuuid"
	"github.com/MarcGrol/basketbackend/services/basket/basketevents"
	"github.com/MarcGrol/basketbackend/services/basket/store"
	"github.com/MarcGrol/basketbackend/services/basketapi"
	"github.com/MarcGrol/basketbackend/services/ledger"
)

const userID = "lucas"

func TestBasketService(t *testing.T) {

	t.Run("Get basket without user identity", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when
		response := serve(t, router, http.MethodGet, "/basket", nil, withoutUser())

		// then
		assert.Equal(t, 401, response.Code)
	})

	t.Run("Get empty basket", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when
		response := serve(t, router, http.MethodGet, "/basket", nil)

		// then
		assert.Equal(t, 200, response.Code)
		basket := decodeBasket(t, response)
		assert.Empty(t, basket.Items)
		assert.Equal(t, 0.0, basket.TotalSpent)
		assert.Equal(t, 500.0, basket.RemainingBalance)
	})

	t.Run("Add item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when
		response := serve(t, router, http.MethodPost, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 1, 50.00))

		// then
		assert.Equal(t, 201, response.Code)
		basket := decodeBasket(t, response)
		assert.Len(t, basket.Items, 1)
		assert.Equal(t, "hammer", basket.Items[0].ProductName)
		assert.Equal(t, 50.0, basket.TotalSpent)
		assert.Equal(t, 450.0, basket.RemainingBalance)
	})

	t.Run("Add item with form payload", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when
		body := strings.NewReader("productId=1-2-3-4-5-6&productName=hammer&count=2&price=25.00")
		request, err := http.NewRequest(http.MethodPost, "/basket/1-2-3-4-5-6", body)
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		request.Header.Set("X-User-Id", userID)
		request.Host = "localhost:8888"
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 201, response.Code)
		basket := decodeBasket(t, response)
		assert.Len(t, basket.Items, 1)
		assert.Equal(t, 2, basket.Items[0].Count)
		assert.Equal(t, 50.0, basket.TotalSpent)
	})

	t.Run("Add item with unsupported content-type", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when
		request, err := http.NewRequest(http.MethodPost, "/basket/1-2-3-4-5-6", strings.NewReader("<item/>"))
		assert.NoError(t, err)
		request.Header.Set("Content-Type", "application/xml")
		request.Header.Set("X-User-Id", userID)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 501, response.Code)
	})

	t.Run("Add item with invalid payload", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when: count outside 1..10
		response := serve(t, router, http.MethodPost, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 0, 50.00))

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Add item with mismatching productId", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when
		response := serve(t, router, http.MethodPost, "/basket/9-9-9-9-9-9",
			itemPayload("1-2-3-4-5-6", "hammer", 1, 50.00))

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Add duplicate item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// given
		response := serve(t, router, http.MethodPost, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 1, 50.00))
		assert.Equal(t, 201, response.Code)

		// when
		response = serve(t, router, http.MethodPost, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 3, 50.00))

		// then: conflict, original record untouched
		assert.Equal(t, 409, response.Code)
		response = serve(t, router, http.MethodGet, "/basket", nil)
		basket := decodeBasket(t, response)
		assert.Len(t, basket.Items, 1)
		assert.Equal(t, 1, basket.Items[0].Count)
	})

	t.Run("Add item beyond capacity", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// given: a full basket
		for i := 0; i < 10; i++ {
			productID := fmt.Sprintf("1-2-3-4-5-%d", i)
			response := serve(t, router, http.MethodPost, "/basket/"+productID,
				itemPayload(productID, "hammer", 1, 10.00))
			assert.Equal(t, 201, response.Code)
		}

		// when
		response := serve(t, router, http.MethodPost, "/basket/9-9-9-9-9-9",
			itemPayload("9-9-9-9-9-9", "hammer", 1, 10.00))

		// then: still exactly 10 items
		assert.Equal(t, 400, response.Code)
		response = serve(t, router, http.MethodGet, "/basket", nil)
		basket := decodeBasket(t, response)
		assert.Len(t, basket.Items, 10)
	})

	t.Run("Remove item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// given
		response := serve(t, router, http.MethodPost, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 1, 50.00))
		assert.Equal(t, 201, response.Code)

		// when
		response = serve(t, router, http.MethodDelete, "/basket/1-2-3-4-5-6", nil)

		// then
		assert.Equal(t, 200, response.Code)
		basket := decodeBasket(t, response)
		assert.Empty(t, basket.Items)
		assert.Equal(t, 500.0, basket.RemainingBalance)
	})

	t.Run("Remove absent item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when
		response := serve(t, router, http.MethodDelete, "/basket/1-2-3-4-5-6", nil)

		// then
		assert.Equal(t, 404, response.Code)
	})

	t.Run("Change count increments", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// given
		response := serve(t, router, http.MethodPost, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 2, 50.00))
		assert.Equal(t, 201, response.Code)

		// when
		response = serve(t, router, http.MethodPatch, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 3, 50.00))

		// then: 2 incremented by 3
		assert.Equal(t, 200, response.Code)
		basket := decodeBasket(t, response)
		assert.Len(t, basket.Items, 1)
		assert.Equal(t, 5, basket.Items[0].Count)
		assert.Equal(t, 250.0, basket.TotalSpent)
		assert.Equal(t, 250.0, basket.RemainingBalance)
	})

	t.Run("Change count of absent item", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when
		response := serve(t, router, http.MethodPatch, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 3, 50.00))

		// then
		assert.Equal(t, 404, response.Code)
	})

	t.Run("Clear basket", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// given
		response := serve(t, router, http.MethodPost, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 1, 50.00))
		assert.Equal(t, 201, response.Code)

		// when
		response = serve(t, router, http.MethodDelete, "/basket", nil)

		// then
		assert.Equal(t, 204, response.Code)
		response = serve(t, router, http.MethodGet, "/basket", nil)
		basket := decodeBasket(t, response)
		assert.Empty(t, basket.Items)
	})

	t.Run("Checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, accountLedger, nower, uuider, publisher, cleanup := setup(t, ctrl)
		defer cleanup()

		// given
		response := serve(t, router, http.MethodPost, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 1, 50.00))
		assert.Equal(t, 201, response.Code)
		uuider.EXPECT().Create().Return("order-123")
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		publisher.EXPECT().Publish(gomock.Any(), basketevents.TopicName, basketevents.BasketCheckedOut{
			UserID:       userID,
			OrderUID:     "order-123",
			TotalPrice:   5000,
			CheckedOutAt: mytime.ExampleTime,
		}).Return(nil)

		// when
		response = serve(t, router, http.MethodPost, "/basket", nil)

		// then
		assert.Equal(t, 201, response.Code)
		assert.Equal(t, "http://localhost:8888/orders", response.Header().Get("Location"))
		account, err := accountLedger.GetAccount(ctx, userID)
		assert.NoError(t, err)
		assert.Equal(t, 45000, account.Balance)
		response = serve(t, router, http.MethodGet, "/basket", nil)
		basket := decodeBasket(t, response)
		assert.Empty(t, basket.Items)

		// and: an immediate second checkout finds nothing to charge
		response = serve(t, router, http.MethodPost, "/basket", nil)
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Checkout empty basket", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _, cleanup := setup(t, ctrl)
		defer cleanup()

		// when
		response := serve(t, router, http.MethodPost, "/basket", nil)

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Checkout with failing debit leaves basket untouched", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, mockLedger, _, uuider, _, cleanup := setupWithMockLedger(t, ctrl)
		defer cleanup()

		// given
		mockLedger.EXPECT().GetAccount(gomock.Any(), userID).Return(ledger.Account{UserID: userID, Balance: 50000}, nil).AnyTimes()
		response := serve(t, router, http.MethodPost, "/basket/1-2-3-4-5-6",
			itemPayload("1-2-3-4-5-6", "hammer", 1, 50.00))
		assert.Equal(t, 201, response.Code)
		uuider.EXPECT().Create().Return("order-123")
		mockLedger.EXPECT().Debit(gomock.Any(), userID, 5000).
			Return(ledger.Account{}, myerrors.NewInternalError(fmt.Errorf("ledger down")))

		// when
		response = serve(t, router, http.MethodPost, "/basket", nil)

		// then: error propagates, basket still holds the item
		assert.Equal(t, 500, response.Code)
		response = serve(t, router, http.MethodGet, "/basket", nil)
		basket := decodeBasket(t, response)
		assert.Len(t, basket.Items, 1)
	})
}

type requestOption func(r *http.Request)

func withoutUser() requestOption {
	return func(r *http.Request) {
		r.Header.Del("X-User-Id")
	}
}

func serve(t *testing.T, router *mux.Router, method string, url string, body *strings.Reader, opts ...requestOption) *httptest.ResponseRecorder {
	var request *http.Request
	var err error
	if body != nil {
		request, err = http.NewRequest(method, url, body)
	} else {
		request, err = http.NewRequest(method, url, nil)
	}
	assert.NoError(t, err)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-User-Id", userID)
	request.Host = "localhost:8888"
	for _, opt := range opts {
		opt(request)
	}

	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)

	return response
}

func itemPayload(productID string, name string, count int, price float64) *strings.Reader {
	return strings.NewReader(fmt.Sprintf(`{"productId":%q,"productName":%q,"count":%d,"price":%.2f}`,
		productID, name, count, price))
}

func decodeBasket(t *testing.T, response *httptest.ResponseRecorder) basketapi.Basket {
	basket := basketapi.Basket{}
	err := json.NewDecoder(response.Body).Decode(&basket)
	assert.NoError(t, err)
	return basket
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, ledger.Ledger, *mytime.MockNower, *myuuid.MockUUIDer, *mypublisher.MockPublisher, func()) {
	c := context.TODO()

	basketStore, storeCleanup, err := store.New(c, store.DefaultTTL)
	assert.NoError(t, err)
	accountLedger, ledgerCleanup, err := ledger.New(c)
	assert.NoError(t, err)
	err = accountLedger.CreateAccount(c, ledger.Account{UserID: userID, Name: "Lucas", Balance: 50000})
	assert.NoError(t, err)

	router, nower, uuider, publisher := setupWeb(t, c, basketStore, accountLedger, ctrl)

	return c, router, accountLedger, nower, uuider, publisher, func() {
		storeCleanup()
		ledgerCleanup()
	}
}

func setupWithMockLedger(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, *ledger.MockLedger, *mytime.MockNower, *myuuid.MockUUIDer, *mypublisher.MockPublisher, func()) {
	c := context.TODO()

	basketStore, storeCleanup, err := store.New(c, store.DefaultTTL)
	assert.NoError(t, err)
	mockLedger := ledger.NewMockLedger(ctrl)

	router, nower, uuider, publisher := setupWeb(t, c, basketStore, mockLedger, ctrl)

	return c, router, mockLedger, nower, uuider, publisher, storeCleanup
}

func setupWeb(t *testing.T, c context.Context, basketStore store.BasketStorer, accountLedger ledger.Ledger, ctrl *gomock.Controller) (*mux.Router, *mytime.MockNower, *myuuid.MockUUIDer, *mypublisher.MockPublisher) {
	nower := mytime.NewMockNower(ctrl)
	uuider := myuuid.NewMockUUIDer(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)

	sut := NewWebService(basketStore, accountLedger, nower, uuider, publisher)
	router := mux.NewRouter()

	// Called by the following call to RegisterEndpoints()
	publisher.EXPECT().CreateTopic(c, basketevents.TopicName).Return(nil)

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return router, nower, uuider, publisher
}
