package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nutrishop/storefront/internal/config"
	"github.com/nutrishop/storefront/internal/es"
	"github.com/nutrishop/storefront/internal/handlers"
	"github.com/nutrishop/storefront/internal/handlers/cart"
	"github.com/nutrishop/storefront/internal/logging"
	mwauth "github.com/nutrishop/storefront/internal/middleware/auth"
	"github.com/nutrishop/storefront/internal/middleware/loggingmw"
	"github.com/nutrishop/storefront/internal/mykafka"
	"github.com/nutrishop/storefront/internal/service/checkout"
	"github.com/nutrishop/storefront/internal/service/coupon"
	"github.com/nutrishop/storefront/internal/service/orders"
	"github.com/nutrishop/storefront/internal/service/payments"
	httpserver "github.com/nutrishop/storefront/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	prod := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	provider := &payments.MockProvider{BaseURL: configuration.PAYMENT_URL}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler: &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, Producer: prod},
		ProductHandler: &handlers.ProductHandler{
			DB: db, Producer: prod, ES: esClient, Index: "products",
		},
		CouponHandler: &handlers.CouponHandler{DB: db, Validator: &coupon.Validator{DB: db}},
		CartHandler:   &cart.CartHandler{DB: db, Producer: prod},
		OrderHandler: &handlers.OrderHandler{
			DB:       db,
			Checkout: &checkout.Service{DB: db, Provider: provider.Name()},
			Orders:   &orders.Service{DB: db},
			Provider: provider,
			Producer: prod,
		},
		PaymentHandler: &handlers.PaymentHandler{Webhook: &payments.Service{DB: db}, Producer: prod},
		Verifier:       &mwauth.Verifier{Secret: jwtSecret},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
