package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/DoyleJ11/nabi-draft/internal/catalog"
	"github.com/DoyleJ11/nabi-draft/internal/service"
)

type Deps struct {
	Service service.Service
	Catalog catalog.Catalog
	WS      http.Handler
	Metrics http.Handler
	// Results and Matches are optional history sources.
	Results        ResultHistory
	Matches        MatchHistory
	AllowedOrigins []string
	Logger         *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", CallerHeader},
	}).Handler)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/champions", ListChampions(d.Catalog))
	r.Get("/champions/search", SearchChampions(d.Catalog))
	r.Get("/champions/{name}", GetChampion(d.Catalog))
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	if d.WS != nil {
		r.Handle("/ws", d.WS)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", CreateSession(d.Service))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", GetSession(d.Service))
			r.Delete("/", ResetSession(d.Service))
			r.Post("/positions", SelectPosition(d.Service))
			r.Delete("/positions/{team}/{role}", LeavePosition(d.Service))
			r.Post("/start", StartDraft(d.Service))
			r.Post("/actions", SubmitAction(d.Service))
			r.Post("/hover", HoverChampion(d.Service))
			r.Post("/skip", ForceSkip(d.Service))
			r.Get("/result", GetResult(d.Service))
			r.Patch("/result", AdjustResult(d.Service))
			r.Post("/result/confirm", ConfirmResult(d.Service))
		})
	})

	if d.Results != nil {
		r.Route("/results", func(r chi.Router) {
			r.Get("/recent", RecentResults(d.Results))
			r.Get("/{id}", CachedResult(d.Results))
		})
	}
	if d.Matches != nil {
		r.Route("/matches", func(r chi.Router) {
			r.Get("/", RecentMatches(d.Matches))
			r.Get("/{id}", MatchBySession(d.Matches))
		})
		r.Get("/players/{id}/matches", PlayerMatches(d.Matches))
	}
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
