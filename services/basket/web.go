package basket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/basketbackend/lib/mycontext"
	"github.com/MarcGrol/basketbackend/lib/myerrors"
	"github.com/MarcGrol/basketbackend/lib/myhttp"
	"github.com/MarcGrol/basketbackend/lib/mylog"
	"github.com/MarcGrol/basketbackend/lib/mypublisher"
	"github.com/MarcGrol/basketbackend/lib/mytime"
	"github.com/MarcGrol/basketbackend/lib/myuuid"
	"github.com/MarcGrol/basketbackend/services/basket/basketevents"
	"github.com/MarcGrol/basketbackend/services/basket/store"
	"github.com/MarcGrol/basketbackend/services/basketapi"
	"github.com/MarcGrol/basketbackend/services/ledger"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and ease testing
func NewWebService(basketStore store.BasketStorer, accountLedger ledger.Ledger, nower mytime.Nower, uuider myuuid.UUIDer, pub mypublisher.Publisher) *webService {
	logger := mylog.New("basket")
	return &webService{
		logger:  logger,
		service: newService(basketStore, accountLedger, nower, uuider, logger, pub),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	err := s.service.publisher.CreateTopic(c, basketevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", basketevents.TopicName, err)
	}

	router.HandleFunc("/basket", s.getBasketPage()).Methods("GET")
	router.HandleFunc("/basket", s.checkoutPage()).Methods("POST")
	router.HandleFunc("/basket", s.clearBasketPage()).Methods("DELETE")

	router.HandleFunc("/basket/{productId}", s.addItemPage()).Methods("POST")
	router.HandleFunc("/basket/{productId}", s.removeItemPage()).Methods("DELETE")
	router.HandleFunc("/basket/{productId}", s.changeCountPage()).Methods("PATCH")

	return nil
}

func (s *webService) getBasketPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)
		now := time.Now()

		userID, err := userIDFromRequest(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		basket, err := s.service.getBasket(c, userID)
		metrics.CountOperation("get_basket", err)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}
		metrics.ObserveDuration("get_basket", now)

		errorWriter.Write(c, w, http.StatusOK, basketapi.BasketFromModel(basket))
	}
}

func (s *webService) addItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)
		now := time.Now()

		userID, err := userIDFromRequest(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}
		productID := mux.Vars(r)["productId"]

		item, err := basketapi.NewItemFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		basket, err := s.service.addItem(c, userID, productID, item.ToModel())
		metrics.CountOperation("add_item", err)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}
		metrics.ObserveDuration("add_item", now)

		errorWriter.Write(c, w, http.StatusCreated, basketapi.BasketFromModel(basket))
	}
}

func (s *webService) removeItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)
		now := time.Now()

		userID, err := userIDFromRequest(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}
		productID := mux.Vars(r)["productId"]

		basket, err := s.service.removeItem(c, userID, productID)
		metrics.CountOperation("remove_item", err)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}
		metrics.ObserveDuration("remove_item", now)

		errorWriter.Write(c, w, http.StatusOK, basketapi.BasketFromModel(basket))
	}
}

func (s *webService) changeCountPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)
		now := time.Now()

		userID, err := userIDFromRequest(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}
		productID := mux.Vars(r)["productId"]

		item, err := basketapi.NewItemFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}
		if item.ProductID != productID {
			errorWriter.WriteError(c, w, 3, myerrors.NewInvalidInputErrorf("productId %s in path does not match productId %s in payload", productID, item.ProductID))
			return
		}

		basket, err := s.service.changeCount(c, userID, item.ToModel())
		metrics.CountOperation("change_count", err)
		if err != nil {
			errorWriter.WriteError(c, w, 4, err)
			return
		}
		metrics.ObserveDuration("change_count", now)

		errorWriter.Write(c, w, http.StatusOK, basketapi.BasketFromModel(basket))
	}
}

func (s *webService) clearBasketPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		userID, err := userIDFromRequest(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		err = s.service.clearBasket(c, userID)
		metrics.CountOperation("clear_basket", err)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusNoContent, nil)
	}
}

func (s *webService) checkoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)
		now := time.Now()

		userID, err := userIDFromRequest(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		orderUID, err := s.service.checkout(c, userID)
		metrics.CountOperation("checkout", err)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}
		metrics.ObserveDuration("checkout", now)

		w.Header().Set("Location", myhttp.HostnameWithScheme(r)+"/orders")
		errorWriter.Write(c, w, http.StatusCreated, checkoutResponse{OrderUID: orderUID})
	}
}

type checkoutResponse struct {
	OrderUID string `json:"orderUid"`
}

func userIDFromRequest(c context.Context) (string, error) {
	userID := mycontext.UserID(c)
	if userID == "" {
		return "", myerrors.NewUnauthorizedError(fmt.Errorf("missing X-User-Id header"))
	}
	return userID, nil
}
