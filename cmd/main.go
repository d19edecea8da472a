package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Vovarama1992/portal-desk/internal/ai"
	"github.com/Vovarama1992/portal-desk/internal/audit"
	"github.com/Vovarama1992/portal-desk/internal/auth"
	"github.com/Vovarama1992/portal-desk/internal/backend"
	"github.com/Vovarama1992/portal-desk/internal/comms"
	"github.com/Vovarama1992/portal-desk/internal/config"
	"github.com/Vovarama1992/portal-desk/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Fatal(err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Auth ---
	session := auth.NewSession(auth.NewGoTrueProvider(cfg.AuthURL, cfg.AuthAPIKey, cfg.BackendTimeout), log)
	guard := auth.NewGuard(session, "/login", cfg.CookieSecure)

	// --- Backend ---
	client, err := backend.New(backend.Config{
		BaseURL:           cfg.BackendURL,
		Timeout:           cfg.BackendTimeout,
		RequestsPerSecond: cfg.BackendRPS,
		Burst:             cfg.BackendBurst,
	}, session, log)
	if err != nil {
		log.WithError(err).Fatal("backend client")
	}
	session.UseProfileLookup(client)

	// --- DB (optional) ---
	var auditor comms.Auditor
	if cfg.DatabaseURL != "" {
		db, err := sqlx.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("db open")
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			log.WithError(err).Fatal("db ping")
		}
		if err := audit.Apply(pingCtx, db); err != nil {
			cancel()
			log.WithError(err).Fatal("db schema")
		}
		cancel()
		auditor = audit.NewRepo(db)
	} else {
		log.Warn("DATABASE_URL is not set, operator actions are not recorded")
	}

	// --- AI (optional) ---
	var assistant ai.AI
	if c := ai.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, log); c != nil {
		assistant = c
	}

	// --- Communication view ---
	hub := comms.NewHub(log, cfg.AllowedOrigins()...)
	inbox := comms.NewInbox(comms.InboxDeps{
		Backend:   client,
		Publisher: hub,
		Auditor:   auditor,
		Assistant: assistant,
		Intervals: comms.Intervals{
			Conversations: cfg.ConversationPollInterval,
			Messages:      cfg.MessagePollInterval,
		},
		PageSize: cfg.MessagePageSize,
	}, log)

	// polling only runs while someone is signed in
	unsubscribe := session.Subscribe(func(ev auth.Event) {
		switch ev.Type {
		case auth.EventSignedIn:
			inbox.Mount(ctx)
		case auth.EventSignedOut:
			inbox.Unmount()
		}
	})
	defer unsubscribe()

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(corsOptions(cfg)))

	auth.RegisterRoutes(r, auth.NewHandler(session, guard))

	r.Group(func(r chi.Router) {
		r.Use(guard.Require(auth.RoleAdmin))
		comms.RegisterRoutes(r, comms.NewHandler(inbox, hub))
	})

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	r.Handle("/metrics", comms.MetricsHandler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
	inbox.Unmount()
	session.Logout(shutdownCtx)
}

func corsOptions(cfg config.Config) cors.Options {
	return cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}
}
