package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"github.com/username/pinigine/backend/src/config"
	"github.com/username/pinigine/backend/src/database"
	"github.com/username/pinigine/backend/src/handlers"
	"github.com/username/pinigine/backend/src/logger"
	"github.com/username/pinigine/backend/src/model"
	"github.com/username/pinigine/backend/src/security"
	"github.com/username/pinigine/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000":    true,
			config.Cfg.FrontendBaseURL: true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func startSessionCleanup() *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc(config.Cfg.SessionCleanupSchedule, func() {
		removed, err := model.DeleteExpiredSessions(database.DB, time.Now().UTC())
		if err != nil {
			logger.L.Error("Failed to purge expired sessions", "error", err)
			return
		}
		if removed > 0 {
			logger.L.Info("Purged expired sessions", "count", removed)
		}
	})
	if err != nil {
		logger.L.Error("Invalid session cleanup schedule, cleanup disabled",
			"schedule", config.Cfg.SessionCleanupSchedule, "error", err)
		return c
	}
	c.Start()
	return c
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Pinigine backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if len(config.Cfg.CSRFAuthKey) < 32 {
		logger.L.Error("CSRF_AUTH_KEY must be at least 32 bytes long.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(15*time.Minute, 30*time.Minute)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	emailService := services.NewEmailService()
	transactionStore, watermarkStore := services.NewSQLStores(database.DB)
	recurringService := services.NewRecurringService(transactionStore, watermarkStore)
	summaryService := services.NewSummaryService(database.DB, reportCache)

	userHandler := handlers.NewUserHandler(authService, emailService)
	handlers.InitializeGoogleOAuthConfig()
	txHandler := handlers.NewTransactionHandler(summaryService)
	recurringHandler := handlers.NewRecurringHandler(recurringService, summaryService)
	budgetHandler := handlers.NewBudgetHandler(summaryService)
	goalHandler := handlers.NewGoalHandler(summaryService)
	debtHandler := handlers.NewDebtHandler(summaryService)
	savingsHandler := handlers.NewSavingsHandler(summaryService)
	summaryHandler := handlers.NewSummaryHandler(summaryService)

	cleanupCron := startSessionCleanup()
	defer cleanupCron.Stop()

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	// Public GET routes (no CSRF needed for these GETs)
	apiRouter.HandleFunc("GET /api/auth/csrf", handlers.GetCSRFToken)
	apiRouter.HandleFunc("GET /api/auth/verify-email", userHandler.VerifyEmailHandler)
	apiRouter.HandleFunc("GET /api/auth/google/login", userHandler.HandleGoogleLogin)
	apiRouter.HandleFunc("GET /api/auth/google/callback", userHandler.HandleGoogleCallback)

	csrfProtection := handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey)

	// Auth actions - POST routes need CSRF
	authActionRouter := http.NewServeMux()
	authActionRouter.HandleFunc("POST /login", userHandler.LoginUserHandler)
	authActionRouter.HandleFunc("POST /register", userHandler.RegisterUserHandler)
	authActionRouter.HandleFunc("POST /refresh", userHandler.RefreshTokenHandler)
	authActionRouter.Handle("POST /logout", userHandler.AuthMiddleware(http.HandlerFunc(userHandler.LogoutUserHandler)))
	authActionRouter.HandleFunc("POST /request-password-reset", userHandler.RequestPasswordResetHandler)
	authActionRouter.HandleFunc("POST /reset-password", userHandler.ResetPasswordHandler)

	apiRouter.Handle("/api/auth/", http.StripPrefix("/api/auth", csrfProtection(authActionRouter)))

	applyCsrfAndAuth := func(handler http.HandlerFunc) http.Handler {
		return csrfProtection(userHandler.AuthMiddleware(handler))
	}

	apiRouter.Handle("GET /api/transactions", applyCsrfAndAuth(txHandler.HandleListTransactions))
	apiRouter.Handle("POST /api/transactions", applyCsrfAndAuth(txHandler.HandleCreateTransaction))
	apiRouter.Handle("PUT /api/transactions/{id}", applyCsrfAndAuth(txHandler.HandleUpdateTransaction))
	apiRouter.Handle("DELETE /api/transactions/{id}", applyCsrfAndAuth(txHandler.HandleDeleteTransaction))
	apiRouter.Handle("GET /api/transactions/export", applyCsrfAndAuth(txHandler.HandleExportTransactions))

	apiRouter.Handle("GET /api/recurring-transactions", applyCsrfAndAuth(recurringHandler.HandleListRecurring))
	apiRouter.Handle("POST /api/recurring-transactions", applyCsrfAndAuth(recurringHandler.HandleCreateRecurring))
	apiRouter.Handle("DELETE /api/recurring-transactions/{id}", applyCsrfAndAuth(recurringHandler.HandleDeleteRecurring))

	apiRouter.Handle("GET /api/budgets", applyCsrfAndAuth(budgetHandler.HandleListBudgets))
	apiRouter.Handle("POST /api/budgets", applyCsrfAndAuth(budgetHandler.HandleCreateBudget))
	apiRouter.Handle("PUT /api/budgets/{id}", applyCsrfAndAuth(budgetHandler.HandleUpdateBudget))
	apiRouter.Handle("DELETE /api/budgets/{id}", applyCsrfAndAuth(budgetHandler.HandleDeleteBudget))

	apiRouter.Handle("GET /api/goals", applyCsrfAndAuth(goalHandler.HandleListGoals))
	apiRouter.Handle("POST /api/goals", applyCsrfAndAuth(goalHandler.HandleCreateGoal))
	apiRouter.Handle("PUT /api/goals/{id}", applyCsrfAndAuth(goalHandler.HandleUpdateGoal))
	apiRouter.Handle("DELETE /api/goals/{id}", applyCsrfAndAuth(goalHandler.HandleDeleteGoal))

	apiRouter.Handle("GET /api/debts", applyCsrfAndAuth(debtHandler.HandleListDebts))
	apiRouter.Handle("POST /api/debts", applyCsrfAndAuth(debtHandler.HandleCreateDebt))
	apiRouter.Handle("PUT /api/debts/{id}", applyCsrfAndAuth(debtHandler.HandleUpdateDebt))
	apiRouter.Handle("DELETE /api/debts/{id}", applyCsrfAndAuth(debtHandler.HandleDeleteDebt))

	apiRouter.Handle("GET /api/savings-accounts", applyCsrfAndAuth(savingsHandler.HandleListSavingsAccounts))
	apiRouter.Handle("POST /api/savings-accounts", applyCsrfAndAuth(savingsHandler.HandleCreateSavingsAccount))
	apiRouter.Handle("DELETE /api/savings-accounts/{id}", applyCsrfAndAuth(savingsHandler.HandleDeleteSavingsAccount))
	apiRouter.Handle("GET /api/savings-accounts/{id}/transactions", applyCsrfAndAuth(savingsHandler.HandleListSavingsTransactions))
	apiRouter.Handle("POST /api/savings-accounts/{id}/transactions", applyCsrfAndAuth(savingsHandler.HandleRecordSavingsTransaction))

	apiRouter.Handle("GET /api/summary", applyCsrfAndAuth(summaryHandler.HandleGetSummary))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Pinigine backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
