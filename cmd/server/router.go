package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"standupbot/internal/api"
	"standupbot/internal/events"
)

func newRouter(a *api.API, webhook *events.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", a.HandleHealth)

	r.Get("/slack/install", a.HandleSlackInstall)
	r.Get("/slack/oauth/callback", a.HandleSlackOAuthCallback)
	r.Post("/slack/events", webhook.ServeHTTP)
	r.Post("/slack/link-user", a.HandleLinkUser)

	r.Patch("/team/{teamID}/settings", a.HandleTeamSettings)
	r.Post("/cron/send-standups", a.HandleDispatchNow)

	return r
}
