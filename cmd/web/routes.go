package main

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AdamBeresnev/cueclub/internal/bracket"
	"github.com/AdamBeresnev/cueclub/internal/httputil"
	"github.com/AdamBeresnev/cueclub/internal/metrics"
	"github.com/AdamBeresnev/cueclub/internal/middleware"
	"github.com/AdamBeresnev/cueclub/internal/realtime"
	"github.com/AdamBeresnev/cueclub/internal/service"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

type application struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	hub         *realtime.Hub
	brackets    *service.BracketService
	matches     *service.MatchService
	tournaments *service.TournamentService
	lifecycle   *service.LifecycleService
	jwtSecret   []byte
	origins     []string
}

type generateRequest struct {
	SeedingMethod bracket.SeedingMethod `json:"seeding_method"`
	Force         bool                  `json:"force"`
}

type reportRequest struct {
	Score1   int       `json:"score_1"`
	Score2   int       `json:"score_2"`
	WinnerID uuid.UUID `json:"winner_id"`
}

func urlUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func respond(w http.ResponseWriter, status int, data any) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(app.metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", app.metrics.Handler())

	r.Get("/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		data, err := app.tournaments.GetTournamentData(r.Context(), id)
		if err != nil {
			httputil.Error(w, "Failed to get tournament", err)
			return
		}
		respond(w, http.StatusOK, data)
	})

	r.Get("/tournaments/{id}/rounds/{round}/complete", func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlUUID(w, r, "id")
		if !ok {
			return
		}
		round, err := strconv.Atoi(chi.URLParam(r, "round"))
		if err != nil || round < 1 {
			httputil.BadRequest(w, "Invalid round", err)
			return
		}
		complete, err := app.matches.IsRoundComplete(r.Context(), id, round)
		if err != nil {
			httputil.Error(w, "Failed to check round", err)
			return
		}
		respond(w, http.StatusOK, map[string]any{"round": round, "complete": complete})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(app.jwtSecret))

		r.Get("/ws/tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlUUID(w, r, "id")
			if !ok {
				return
			}
			// The upgrader has already answered the request when this fails.
			if err := app.hub.ServeWS(w, r, id.String()); err != nil {
				app.logger.Warn("websocket upgrade failed", "tournament_id", id, "error", err)
			}
		})

		r.Post("/lifecycle/run", func(w http.ResponseWriter, r *http.Request) {
			logs, err := app.lifecycle.RunPass(r.Context())
			if err != nil {
				httputil.Error(w, "Failed to run lifecycle pass", err)
				return
			}
			respond(w, http.StatusOK, map[string]any{"actions": logs})
		})

		r.Post("/tournaments/{id}/bracket", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlUUID(w, r, "id")
			if !ok {
				return
			}
			var req generateRequest
			if err := httputil.ReadJSON(w, r, &req); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			generated, err := app.brackets.GenerateBracket(r.Context(), id, req.SeedingMethod, req.Force)
			if err != nil {
				httputil.Error(w, "Failed to generate bracket", err)
				return
			}
			respond(w, http.StatusCreated, generated)
		})

		r.Post("/tournaments/{id}/reset", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlUUID(w, r, "id")
			if !ok {
				return
			}
			matches, err := app.matches.ResetTournament(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to reset tournament", err)
				return
			}
			respond(w, http.StatusOK, map[string]any{"matches": matches})
		})

		r.Post("/matches/{id}/start", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlUUID(w, r, "id")
			if !ok {
				return
			}
			match, err := app.matches.StartMatch(r.Context(), id)
			if err != nil {
				httputil.Error(w, "Failed to start match", err)
				return
			}
			respond(w, http.StatusOK, match)
		})

		r.Post("/matches/{id}/result", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlUUID(w, r, "id")
			if !ok {
				return
			}
			var req reportRequest
			if err := httputil.ReadJSON(w, r, &req); err != nil {
				httputil.BadRequest(w, err.Error(), err)
				return
			}
			if req.WinnerID == uuid.Nil {
				httputil.BadRequest(w, "winner_id is required", nil)
				return
			}
			result, err := app.matches.ReportResult(r.Context(), service.ReportInput{
				MatchID:  id,
				Score1:   req.Score1,
				Score2:   req.Score2,
				WinnerID: req.WinnerID,
			})
			if err != nil {
				httputil.Error(w, "Failed to report result", err)
				return
			}
			respond(w, http.StatusOK, result)
		})

		r.Get("/notifications", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := middleware.GetUserIDFromContext(r.Context())
			notifications, err := app.tournaments.GetNotifications(r.Context(), userID)
			if err != nil {
				httputil.Error(w, "Failed to get notifications", err)
				return
			}
			respond(w, http.StatusOK, notifications)
		})

		r.Post("/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
			id, ok := urlUUID(w, r, "id")
			if !ok {
				return
			}
			userID, _ := middleware.GetUserIDFromContext(r.Context())
			if err := app.tournaments.MarkNotificationRead(r.Context(), userID, id); err != nil {
				httputil.Error(w, "Failed to mark notification read", err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
	})

	return r
}
