package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/civicworks/epetitions/cliparse"
	"github.com/civicworks/epetitions/db"
	"github.com/civicworks/epetitions/jobs"
	"github.com/civicworks/epetitions/mailer"
	"github.com/civicworks/epetitions/middleware"
	"github.com/civicworks/epetitions/router"
	"github.com/civicworks/epetitions/site"
)

func main() {
	var err error

	// Load .env if present (local development)
	_ = godotenv.Load()

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to the database
	dbConn, err := sql.Open(db.DriverName(cfg.DatabaseType), cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Verify connection
	if err := dbConn.Ping(); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn, cfg.DatabaseType); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready")

	// Site settings singleton, mailer, background jobs
	sites := site.NewManager(dbConn)
	mail := mailer.New(cfg)

	runner := jobs.NewRunner(dbConn, sites, mail)
	if err := runner.Start(); err != nil {
		slog.Error("background jobs failed to start", "error", err)
		os.Exit(1)
	}
	defer runner.Stop()

	// Create router
	mux := router.NewRouter(dbConn, cfg, sites, mail)

	// Create server
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}
