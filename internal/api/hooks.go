package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mappingforchange/geokey-airquality/internal/airquality"
	"github.com/mappingforchange/geokey-airquality/internal/auth"
)

type hookHandler func(ctx context.Context, ev airquality.HostEvent) (int, error)

type hookResponse struct {
	Affected int `json:"affected"`
}

func (s *Server) hostSaved(w http.ResponseWriter, r *http.Request) {
	handlers := map[string]hookHandler{
		"projects":   s.deps.Service.HostProjectSaved,
		"categories": s.deps.Service.HostCategorySaved,
		"fields":     s.deps.Service.HostFieldSaved,
	}
	s.hook(w, r, handlers)
}

func (s *Server) hostDeleted(w http.ResponseWriter, r *http.Request) {
	handlers := map[string]hookHandler{
		"projects":   s.deps.Service.HostProjectDeleted,
		"categories": s.deps.Service.HostCategoryDeleted,
		"fields":     s.deps.Service.HostFieldDeleted,
	}
	s.hook(w, r, handlers)
}

// hook runs the handler for the kind in the path. Only superuser tokens,
// such as the host's service token, may call hooks.
func (s *Server) hook(w http.ResponseWriter, r *http.Request, handlers map[string]hookHandler) {
	if !auth.UserFrom(r.Context()).IsSuperuser {
		writeJSON(w, http.StatusForbidden, errorBody{Error: airquality.MsgSuperusersOnly})
		return
	}
	handle, ok := handlers[chi.URLParam(r, "kind")]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Unknown hook."})
		return
	}
	id, ok := pathID(w, r, "hostID", "Unknown hook.")
	if !ok {
		return
	}

	var ev airquality.HostEvent
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&ev)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Request body must be a JSON object."})
		return
	}
	ev.ID = id

	n, err := handle(r.Context(), ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hookResponse{Affected: n})
}
