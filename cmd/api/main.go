package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/spherre/multisig-service/internal/config"
	"github.com/spherre/multisig-service/internal/handler"
	"github.com/spherre/multisig-service/internal/indexer"
	"github.com/spherre/multisig-service/internal/integrations/starknet"
	"github.com/spherre/multisig-service/internal/middleware"
	"github.com/spherre/multisig-service/internal/repository"
	"github.com/spherre/multisig-service/internal/service"
	"github.com/spherre/multisig-service/internal/utils/email"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	sender := email.NewSender(cfg, logger)
	notifications := service.NewNotificationService(repo, repo, sender, logger)
	accounts := service.NewAccountService(repo, notifications, logger)
	txs := service.NewTransactionService(repo, repo, notifications, logger)
	locks := service.NewSmartLockService(repo, repo, logger)
	auth := service.NewAuthService(repo, cfg, logger)
	h := handler.NewHandler(auth, accounts, txs, notifications, locks, logger)

	// Start the chain indexer
	if cfg.IndexerEnabled {
		chain := starknet.NewClient(cfg, logger)
		ix := indexer.New(chain, accounts, txs, repo, logger)
		if err := ix.Start(cfg.IndexerSpec); err != nil {
			logger.Fatalf("Failed to start indexer: %v", err)
		}
		defer ix.Stop()
	}

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	r.HandleFunc("/health", h.Health).Methods("GET")
	api.HandleFunc("/auth/signin", h.SignIn).Methods("POST")
	api.HandleFunc("/accounts/member/{address}", h.GetMemberAccounts).Methods("GET")
	api.HandleFunc("/accounts/{address}", h.GetAccount).Methods("GET")
	api.HandleFunc("/accounts/{address}/transactions", h.ListTransactions).Methods("GET")
	api.HandleFunc("/accounts/{address}/transactions/export", h.ExportTransactions).Methods("GET")
	api.HandleFunc("/accounts/{address}/transactions/{id}", h.GetTransaction).Methods("GET")
	api.HandleFunc("/accounts/{address}/notifications", h.ListNotifications).Methods("GET")
	api.HandleFunc("/accounts/{address}/smart-locks", h.ListSmartLocks).Methods("GET")

	// Protected routes
	authRouter := api.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	authRouter.HandleFunc("/accounts/{address}/transactions", h.ProposeTransaction).Methods("POST")
	authRouter.HandleFunc("/accounts/{address}/transactions/{id}/approve", h.ApproveTransaction).Methods("POST")
	authRouter.HandleFunc("/accounts/{address}/transactions/{id}/reject", h.RejectTransaction).Methods("POST")
	authRouter.HandleFunc("/accounts/{address}/transactions/{id}/execute", h.ExecuteTransaction).Methods("POST")
	authRouter.HandleFunc("/accounts/{address}/settings/email", h.SetMemberEmail).Methods("POST", "PUT")
	authRouter.HandleFunc("/accounts/{address}/settings/notifications", h.ToggleNotificationPreference).Methods("POST")
	authRouter.HandleFunc("/notifications/{id}/read", h.MarkNotificationRead).Methods("POST")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
