package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/MarcGrol/basketbackend/lib/mymetrics"
	"github.com/MarcGrol/basketbackend/lib/mypublisher"
	"github.com/MarcGrol/basketbackend/lib/mypubsub"
	"github.com/MarcGrol/basketbackend/lib/myqueue"
	"github.com/MarcGrol/basketbackend/lib/mytime"
	"github.com/MarcGrol/basketbackend/lib/myuuid"
	"github.com/MarcGrol/basketbackend/services/basket"
	"github.com/MarcGrol/basketbackend/services/basket/store"
	"github.com/MarcGrol/basketbackend/services/ledger"
)

func main() {
	c := context.Background()

	err := godotenv.Load()
	if err != nil {
		log.Printf("No .env file found: relying on environment")
	}

	router := mux.NewRouter()

	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	publisher, publisherCleanup := createPublisher(c, router, nower)
	defer publisherCleanup()

	basketStore, basketStoreCleanup, err := store.New(c, store.DefaultTTL)
	if err != nil {
		log.Fatalf("Error creating basket store: %s", err)
	}
	defer basketStoreCleanup()

	accountLedger, ledgerCleanup, err := ledger.New(c)
	if err != nil {
		log.Fatalf("Error creating ledger: %s", err)
	}
	defer ledgerCleanup()

	seedDemoAccount(c, accountLedger)

	basketService := basket.NewWebService(basketStore, accountLedger, nower, uuider, publisher)
	err = basketService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering basket endpoints: %s", err)
	}

	router.Handle("/metrics", mymetrics.Handler()).Methods("GET")

	startWebServerBlocking(router)
}

func createPublisher(c context.Context, router *mux.Router, nower mytime.Nower) (mypublisher.Publisher, func()) {
	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		pubsubCleanup()
		log.Fatalf("Error creating task queue: %s", err)
	}

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		queueCleanup()
		pubsubCleanup()
		log.Fatalf("Error creating publisher: %s", err)
	}
	publisher.RegisterEndpoints(c, router)

	return publisher, func() {
		publisherCleanup()
		queueCleanup()
		pubsubCleanup()
	}
}

// seedDemoAccount makes the service usable out of the box: existing
// accounts are left untouched by CreateAccount.
func seedDemoAccount(c context.Context, accountLedger ledger.Ledger) {
	userID := os.Getenv("DEMO_USER_ID")
	if userID == "" {
		userID = "lucas"
	}

	err := accountLedger.CreateAccount(c, ledger.Account{
		UserID:  userID,
		Name:    userID,
		Balance: 50000,
	})
	if err != nil {
		log.Printf("Error seeding account of user %s: %s", userID, err)
	}
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	handler := cors.AllowAll().Handler(router)

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%s", port), handler)
	if err != nil {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
