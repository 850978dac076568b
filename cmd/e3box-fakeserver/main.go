// Command e3box-fakeserver stands up internal/fakeserver as a standalone
// HTTP process, for exercising a client against a real TCP listener
// instead of an in-process httptest.Server. It is not a production
// server: see internal/fakeserver's package doc.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/tozny/e3db-go/internal/fakeserver"
)

func main() {
	tokenFlag := flag.String("register-token", "", "pre-authorize a one-time registration token")
	flag.Parse()

	cfg := loadConfig()
	logger := log.New(os.Stdout, "[e3box-fakeserver] ", log.LstdFlags)

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		logger.Fatalf("store: %v", err)
	}
	defer closeStore()

	srv, err := fakeserver.NewServer(
		store,
		fakeserver.WithTokenTTL(cfg.TokenTTL),
		fakeserver.WithAuthRateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst),
	)
	if err != nil {
		logger.Fatalf("fakeserver.NewServer: %v", err)
	}

	if *tokenFlag != "" {
		if err := srv.AddRegistrationToken(*tokenFlag); err != nil {
			logger.Fatalf("AddRegistrationToken: %v", err)
		}
		logger.Printf("registration token %q is live", *tokenFlag)
	}

	logger.Printf("listening on %s (mongo=%v)", cfg.ListenAddr, cfg.MongoURI != "")
	logger.Fatal(http.ListenAndServe(cfg.ListenAddr, srv))
}

func buildStore(cfg serverConfig) (fakeserver.Store, func(), error) {
	if cfg.MongoURI == "" {
		return fakeserver.NewMemoryStore(), func() {}, nil
	}

	ctx := context.Background()
	store, err := fakeserver.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, nil, err
	}
	closer, ok := store.(interface{ Close(context.Context) error })
	if !ok {
		return store, func() {}, nil
	}
	return store, func() { _ = closer.Close(context.Background()) }, nil
}
