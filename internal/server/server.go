package server

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"mileage-logger/internal/database"
	"mileage-logger/internal/geocoding"
	"mileage-logger/internal/handlers"
	"mileage-logger/internal/pipeline"
	"mileage-logger/internal/routing"
	"mileage-logger/internal/sqlite"
	"mileage-logger/web"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	store      *database.FileStore
	cache      *sqlite.DistanceCache
	listener   net.Listener
	addr       string
}

// Config holds server configuration
type Config struct {
	Addr string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
}

// New creates and initializes a new server (does not start it)
func New(cfg Config) (*Server, error) {
	log.Printf("Initializing data store...")
	store, err := database.NewFileStore()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	log.Printf("Initializing distance cache...")
	dbPath, err := database.GetDistanceDBPath()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to resolve cache path: %w", err)
	}
	cache, err := sqlite.NewDistanceCache(dbPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize distance cache: %w", err)
	}

	sessions := database.NewSessionRepository(store)

	apiKey, err := sessions.APIKey(context.Background())
	if err != nil {
		log.Printf("[ERROR] Could not read stored API key: %v", err)
	}
	if apiKey == "" {
		apiKey = os.Getenv("ORS_API_KEY")
	}

	geocoder := geocoding.NewNominatimGeocoder("ca")
	router := routing.NewORSRouter(apiKey, cache)

	handler := &handlers.Handler{
		Sessions:   sessions,
		Geocoder:   geocoder,
		Verifier:   geocoding.NewVerifier(geocoder),
		Calculator: pipeline.NewCalculator(geocoder, router),
		Router:     router,
	}

	if err := handler.LoadSession(context.Background()); err != nil {
		store.Close()
		cache.Close()
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	mux := setupRoutes(handler)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(corsMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		store:      store,
		cache:      cache,
		addr:       cfg.Addr,
	}, nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if err := s.cache.Close(); err != nil {
		log.Printf("[ERROR] Closing distance cache: %v", err)
	}
	return s.store.Close()
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	// Serve static files from embedded filesystem
	staticSubFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		log.Fatalf("failed to create static sub-filesystem: %v", err)
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSubFS))))

	mux.HandleFunc("/api/v1/health", handler.HandleHealthCheck)

	mux.HandleFunc("/api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.HandleGetSettings(w, r)
		case http.MethodPut:
			handler.HandleUpdateSettings(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleGetSession(w, r)
	})

	mux.HandleFunc("/api/v1/session/stops", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleAddPendingStop(w, r)
	})

	mux.HandleFunc("/api/v1/session/stops/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/session/stops/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleRemovePendingStop(w, r)
	})

	mux.HandleFunc("/api/v1/trips", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleAddTrip(w, r)
	})

	mux.HandleFunc("/api/v1/trips/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/trips/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodPut:
			handler.HandleUpdateTrip(w, r)
		case http.MethodDelete:
			handler.HandleRemoveTrip(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/v1/address-search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleAddressSearch(w, r)
	})

	mux.HandleFunc("/api/v1/verify-address", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleVerifyAddress(w, r)
	})

	mux.HandleFunc("/api/v1/calculate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleCalculate(w, r)
	})

	mux.HandleFunc("/api/v1/legs/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/legs/" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleOverrideLeg(w, r)
	})

	mux.HandleFunc("/api/v1/export", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.HandleExportCSV(w, r)
	})

	// Single page UI
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		page, err := fs.ReadFile(web.Templates, "templates/index.html")
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	})

	return mux
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		log.Printf("%s %s %d %v", r.Method, r.URL.Path, lrw.statusCode, duration)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins (Wails webview and local development)
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") ||
			strings.HasPrefix(origin, "wails://") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
