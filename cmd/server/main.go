/*
main.go - Application entry point

PURPOSE:
  Starts the acta engine HTTP server: opens the SQLite store, loads
  grading rules, wires the lifecycle service and exporter, and serves
  the API with graceful shutdown.

COMMAND-LINE FLAGS:
  -port   HTTP server port (default: 8080)
  -db     SQLite database path (default: actas.db)
          Use ":memory:" for an in-memory database
  -rules  Path to a grading-rules JSON config file. When omitted, a
          built-in default set is used (numeric 0-100/51 for PRIMARIA
          and SECUNDARIA, qualitative levels for INICIAL).

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain active requests
  (30s timeout), close the database.

SEE ALSO:
  - api/server.go: router configuration
  - store/sqlite/sqlite.go: database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/acta-engine/acta"
	"github.com/warp/acta-engine/api"
	"github.com/warp/acta-engine/factory"
	"github.com/warp/acta-engine/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "actas.db", "SQLite database path")
	rulesPath := flag.String("rules", "", "grading rules JSON config file")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	rules, err := loadRules(*rulesPath)
	if err != nil {
		log.Fatalf("Failed to load grading rules: %v", err)
	}

	svc := acta.NewService(store, store, rules, nil)
	exporter := acta.NewExporter(store, store, nil)
	router := api.NewRouter(api.NewHandler(svc, exporter))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Acta engine listening on http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// loadRules reads the rules config file, or falls back to the built-in
// default set when no file is given.
func loadRules(path string) (acta.RulesProvider, error) {
	if path == "" {
		return defaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return factory.NewRulesFactory().ParseSet(string(data))
}

func defaultRules() acta.StaticRules {
	_, inicial, err := factory.NewRulesFactory().Parse(`{
		"level": "INICIAL",
		"type": "qualitative",
		"levels": [
			{"code": "ED", "label": "En desarrollo"},
			{"code": "DA", "label": "Desarrollo aceptable"},
			{"code": "DO", "label": "Desarrollo optimo"},
			{"code": "DP", "label": "Desarrollo pleno"}
		],
		"min_attendance_percent": 75
	}`)
	if err != nil {
		log.Fatalf("Invalid built-in rules: %v", err)
	}
	return acta.StaticRules{
		"INICIAL":    inicial,
		"PRIMARIA":   acta.DefaultNumericRules(),
		"SECUNDARIA": acta.DefaultNumericRules(),
	}
}
