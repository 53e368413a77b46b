// Package httpapi is the HTTP surface: the controller and overlay pages,
// template assets, the snapshot fetch, and the small config API. Live
// updates go over /ws; everything here is request/response.
package httpapi

import (
	"encoding/json"
	"html/template"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fgcaster/overlay/internal/match"
	"github.com/fgcaster/overlay/internal/persist"
	"github.com/fgcaster/overlay/internal/store"
	"github.com/fgcaster/overlay/internal/templates"
)

// ControllerPage serves the operator UI. The markup itself is static
// content; it talks to the server over /state and /ws.
func ControllerPage(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(staticDir, "controller.html"))
	}
}

// scoreboardData is what a template's markup can reference.
type scoreboardData struct {
	Version  int
	State    match.State
	Template string
}

// ScoreboardPage renders the active template's markup. The markup is parsed
// per request so a rescan or an author's edit shows up on the next reload,
// which is how template authoring iterates.
func ScoreboardPage(st *store.Store, reg *templates.Registry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := st.Snapshot()

		desc, err := reg.Get(snap.State.ActiveTemplate)
		if err != nil {
			http.Error(w, "active template not found", http.StatusNotFound)
			return
		}

		tmpl, err := template.New(filepath.Base(desc.Markup)).Funcs(template.FuncMap{
			"asset": func(p string) string {
				return "/assets/" + desc.ID + "/" + strings.TrimPrefix(p, "/")
			},
		}).ParseFiles(desc.Markup)
		if err != nil {
			logger.Error("template markup failed to parse",
				zap.String("template", desc.ID),
				zap.Error(err))
			http.Error(w, "template failed to render", http.StatusInternalServerError)
			return
		}

		var buf strings.Builder
		if err := tmpl.Execute(&buf, scoreboardData{
			Version:  snap.Version,
			State:    snap.State,
			Template: desc.ID,
		}); err != nil {
			logger.Error("template markup failed to execute",
				zap.String("template", desc.ID),
				zap.Error(err))
			http.Error(w, "template failed to render", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(buf.String()))
	}
}

// TemplateAsset serves files out of one template's folder. The cleaned
// relative path must stay inside the folder; anything else is a 404, same
// as a file that simply is not there.
func TemplateAsset(reg *templates.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		desc, err := reg.Get(chi.URLParam(r, "template"))
		if err != nil {
			http.NotFound(w, r)
			return
		}

		rel := path.Clean("/" + chi.URLParam(r, "*"))
		full := filepath.Join(desc.Dir, filepath.FromSlash(rel))
		if !strings.HasPrefix(full, desc.Dir+string(os.PathSeparator)) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, full)
	}
}

// GetState returns the current snapshot. Clients use it as the initial
// render before the websocket is up, or as a poll fallback.
func GetState(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.Snapshot())
	}
}

type templatesResponse struct {
	Templates []templates.Descriptor `json:"templates"`
	Active    string                 `json:"active"`
}

func ListTemplates(reg *templates.Registry, st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, templatesResponse{
			Templates: reg.Descriptors(),
			Active:    st.Snapshot().State.ActiveTemplate,
		})
	}
}

// RescanTemplates re-walks the templates root and returns the fresh list.
// The registry swaps atomically, so in-flight validation sees either the old
// or the new set, never a partial one.
func RescanTemplates(reg *templates.Registry, st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Rescan(); err != nil {
			http.Error(w, "rescan failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, templatesResponse{
			Templates: reg.Descriptors(),
			Active:    st.Snapshot().State.ActiveTemplate,
		})
	}
}

type portRequest struct {
	Port int `json:"port"`
}

type portResponse struct {
	Port    int    `json:"port"`
	Changed bool   `json:"changed"`
	Message string `json:"message"`
}

// SetPort persists a new listen port. The running listener is not rebound;
// the response says so and the change applies on the next start.
func SetPort(saver *persist.Saver, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req portRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request body", http.StatusBadRequest)
			return
		}
		if req.Port < 1 || req.Port > 65535 {
			http.Error(w, "port must be between 1 and 65535", http.StatusBadRequest)
			return
		}

		prev, err := saver.SetPort(req.Port)
		if err != nil {
			logger.Error("port save failed", zap.Error(err))
			http.Error(w, "failed to save port", http.StatusInternalServerError)
			return
		}

		resp := portResponse{Port: req.Port}
		if prev == req.Port {
			resp.Message = "port unchanged"
		} else {
			resp.Changed = true
			resp.Message = "saved; restart the server to apply"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
