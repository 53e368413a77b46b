package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/fgcaster/overlay/internal/hub"
	"github.com/fgcaster/overlay/internal/persist"
	"github.com/fgcaster/overlay/internal/store"
	"github.com/fgcaster/overlay/internal/templates"
	"github.com/fgcaster/overlay/internal/ws"
)

// Deps is everything the HTTP surface needs. Handlers close over the pieces
// they use, so tests can wire only what a route touches.
type Deps struct {
	Store     *store.Store
	Registry  *templates.Registry
	Saver     *persist.Saver
	Hub       *hub.Hub
	StaticDir string
	Log       *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()

	// Pages
	r.Get("/", ControllerPage(d.StaticDir))
	r.Get("/scoreboard", ScoreboardPage(d.Store, d.Registry, d.Log))

	// Files
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(d.StaticDir))))
	r.Get("/assets/{template}/*", TemplateAsset(d.Registry))

	// API
	r.Get("/state", GetState(d.Store))
	r.Get("/templates", ListTemplates(d.Registry, d.Store))
	r.Post("/templates/rescan", RescanTemplates(d.Registry, d.Store))
	r.Post("/config/port", SetPort(d.Saver, d.Log))
	r.Get("/healthz", Healthz)

	// Live channel
	r.Get("/ws", ws.Handler(d.Hub, d.Log))

	// OBS browser sources and controller tabs served off dev hosts show up
	// with odd origins; the API is origin-agnostic on purpose.
	return cors.AllowAll().Handler(r)
}
