package api

import (
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"flikz/handlers"
	"flikz/internal/metrics"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"
)

// Options tunes the middleware stack of the API subrouter.
type Options struct {
	// RequestsPerMinute limits each client IP; 0 disables the limiter.
	RequestsPerMinute int
	AllowedOrigins    []string
}

// localhostOnlyMiddleware restricts access to loopback peers. Host and forwarded
// headers are client controlled and are ignored.
func localhostOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.RemoteAddr
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			http.Error(w, "Maintenance endpoints only accessible from localhost", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records every matched request under its route template so
// ids do not explode the label set.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}

// handleOptions answers preflight requests the CORS middleware let through.
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// Register mounts API endpoints and HTML pages onto the provided router.
func Register(
	r *mux.Router,
	opts Options,
	metadataHandler *handlers.MetadataHandler,
	catalogHandler *handlers.CatalogHandler,
	preferencesHandler *handlers.PreferencesHandler,
	imageHandler *handlers.ImageHandler,
	cacheHandler *handlers.CacheHandler,
	tasksHandler *handlers.ScheduledTasksHandler,
	pageHandler *handlers.PageHandler,
) {
	r.Use(metricsMiddleware)
	r.Use(handlers.ClientMiddleware)

	r.HandleFunc("/healthz", health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	debug := r.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(localhostOnlyMiddleware)
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)

	api := r.PathPrefix("/api").Subrouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	api.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if opts.RequestsPerMinute > 0 {
		api.Use(httprate.LimitByIP(opts.RequestsPerMinute, time.Minute))
	}

	api.HandleFunc("/health", health).Methods(http.MethodGet)

	// Discovery grids (infinite scroll)
	api.HandleFunc("/catalog/genre/{id}", catalogHandler.Next).Methods(http.MethodGet)
	api.HandleFunc("/catalog/{grid}", catalogHandler.Next).Methods(http.MethodGet)
	api.HandleFunc("/home", metadataHandler.Home).Methods(http.MethodGet)

	// Search
	api.HandleFunc("/search", metadataHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/search/suggest", metadataHandler.Suggest).Methods(http.MethodGet)

	// Titles
	api.HandleFunc("/movie/{id:[0-9]+}", metadataHandler.MovieDetails).Methods(http.MethodGet)
	api.HandleFunc("/tv/{id:[0-9]+}", metadataHandler.SeriesDetails).Methods(http.MethodGet)
	api.HandleFunc("/tv/{id:[0-9]+}/season/{season:[0-9]+}", metadataHandler.SeasonDetails).Methods(http.MethodGet)
	api.HandleFunc("/{type:movie|tv}/{id:[0-9]+}/credits", metadataHandler.Credits).Methods(http.MethodGet)
	api.HandleFunc("/{type:movie|tv}/{id:[0-9]+}/similar", metadataHandler.Similar).Methods(http.MethodGet)
	api.HandleFunc("/{type:movie|tv}/{id:[0-9]+}/recommendations", metadataHandler.Recommendations).Methods(http.MethodGet)

	// People
	api.HandleFunc("/person/{id:[0-9]+}", metadataHandler.PersonDetails).Methods(http.MethodGet)
	api.HandleFunc("/person/{id:[0-9]+}/credits", metadataHandler.PersonCredits).Methods(http.MethodGet)
	api.HandleFunc("/people/popular", metadataHandler.PopularPeople).Methods(http.MethodGet)

	// Reference data
	api.HandleFunc("/genres", metadataHandler.Genres).Methods(http.MethodGet)
	api.HandleFunc("/genres/top", metadataHandler.TopGenres).Methods(http.MethodGet)
	api.HandleFunc("/languages", metadataHandler.Languages).Methods(http.MethodGet)

	// Client preferences and location
	api.HandleFunc("/preferences", preferencesHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/preferences/language", preferencesHandler.SetLanguage).Methods(http.MethodPut)
	api.HandleFunc("/preferences/country", preferencesHandler.SetCountry).Methods(http.MethodPut)
	api.HandleFunc("/geo", preferencesHandler.Detect).Methods(http.MethodGet)
	api.HandleFunc("/geo/reverse", preferencesHandler.ReverseGeocode).Methods(http.MethodPost)

	// Image proxy
	api.HandleFunc("/images", imageHandler.Proxy).Methods(http.MethodGet)

	// Maintenance (localhost only)
	api.Handle("/cache", localhostOnlyMiddleware(http.HandlerFunc(cacheHandler.Stats))).Methods(http.MethodGet)
	api.Handle("/cache", localhostOnlyMiddleware(http.HandlerFunc(cacheHandler.Clear))).Methods(http.MethodDelete)
	api.Handle("/tasks", localhostOnlyMiddleware(http.HandlerFunc(tasksHandler.ListTasks))).Methods(http.MethodGet)
	api.Handle("/tasks/{taskID}/run", localhostOnlyMiddleware(http.HandlerFunc(tasksHandler.RunTask))).Methods(http.MethodPost)

	api.Methods(http.MethodOptions).HandlerFunc(handleOptions)
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}` + "\n"))
	})

	// Static assets
	r.PathPrefix("/static/").Handler(handlers.Static()).Methods(http.MethodGet)

	// HTML pages
	r.HandleFunc("/", pageHandler.Home).Methods(http.MethodGet)
	r.HandleFunc("/movies", pageHandler.Grid("movies")).Methods(http.MethodGet)
	r.HandleFunc("/tvs", pageHandler.Grid("tvs")).Methods(http.MethodGet)
	r.HandleFunc("/movies-by-region", pageHandler.Grid("movies-by-region")).Methods(http.MethodGet)
	r.HandleFunc("/tvs-by-region", pageHandler.Grid("tvs-by-region")).Methods(http.MethodGet)
	r.HandleFunc("/genre/{id}", pageHandler.GenreGrid).Methods(http.MethodGet)
	r.HandleFunc("/movie/{id}", pageHandler.Movie).Methods(http.MethodGet)
	r.HandleFunc("/tv/{id}", pageHandler.TV).Methods(http.MethodGet)
	r.HandleFunc("/tv/{id}/season/{season}", pageHandler.Season).Methods(http.MethodGet)
	r.HandleFunc("/person/{id}", pageHandler.Person).Methods(http.MethodGet)
	r.HandleFunc("/search", pageHandler.Search).Methods(http.MethodGet)

	r.NotFoundHandler = handlers.ClientMiddleware(http.HandlerFunc(pageHandler.NotFound))
}
