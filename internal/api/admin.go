package api

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mappingforchange/geokey-airquality/internal/airquality"
	"github.com/mappingforchange/geokey-airquality/internal/auth"
	"github.com/mappingforchange/geokey-airquality/internal/sheet"
)

type projectResponse struct {
	Message string `json:"message"`
	Project any    `json:"project,omitempty"`
}

func (s *Server) overview(w http.ResponseWriter, r *http.Request) {
	o, err := s.deps.Service.Overview(r.Context(), auth.UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) choices(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Service.Choices(r.Context(), auth.UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) addProject(w http.ResponseWriter, r *http.Request) {
	form, ok := readForm(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Service.AddProject(r.Context(), auth.UserFrom(r.Context()), form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectResponse{Message: airquality.MsgProjectAdded, Project: p})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID", airquality.MsgProjectNotFound)
	if !ok {
		return
	}
	page, err := s.deps.Service.GetProject(r.Context(), auth.UserFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID", airquality.MsgProjectNotFound)
	if !ok {
		return
	}
	form, ok := readForm(w, r)
	if !ok {
		return
	}
	p, err := s.deps.Service.UpdateProject(r.Context(), auth.UserFrom(r.Context()), id, form)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Message: airquality.MsgProjectUpdated, Project: p})
}

func (s *Server) removeProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID", airquality.MsgProjectNotFound)
	if !ok {
		return
	}
	if err := s.deps.Service.RemoveProject(r.Context(), auth.UserFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Message: airquality.MsgProjectRemoved})
}

// export serves /export/{file}; only the extension of file matters.
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	ext := strings.TrimPrefix(path.Ext(chi.URLParam(r, "file")), ".")
	format, err := sheet.ParseFormat(ext)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Unknown export format."})
		return
	}

	exp, err := s.deps.Service.Export(r.Context(), auth.UserFrom(r.Context()), format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Data)
}

func (s *Server) hostProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID", airquality.MsgProjectNotFound)
	if !ok {
		return
	}
	hp, err := s.deps.Service.HostProject(r.Context(), auth.UserFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hp)
}

func (s *Server) hostCategory(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "projectID", airquality.MsgProjectNotFound)
	if !ok {
		return
	}
	categoryID, ok := pathID(w, r, "categoryID", airquality.MsgCategoryNotFound)
	if !ok {
		return
	}
	hc, err := s.deps.Service.HostCategory(r.Context(), auth.UserFrom(r.Context()), projectID, categoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hc)
}
