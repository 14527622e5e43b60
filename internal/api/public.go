package api

import (
	"net/http"

	"github.com/mappingforchange/geokey-airquality/internal/airquality"
	"github.com/mappingforchange/geokey-airquality/internal/auth"
)

func (s *Server) sendSheet(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Service.SendSheet(r.Context(), auth.UserFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.deps.Service.ListProjects(r.Context(), auth.UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.deps.Service.ListLocations(r.Context(), auth.UserFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

func (s *Server) createLocation(w http.ResponseWriter, r *http.Request) {
	data, ok := decodeObject(w, r)
	if !ok {
		return
	}
	feat, err := s.deps.Service.CreateLocation(r.Context(), auth.UserFrom(r.Context()), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, feat)
}

func (s *Server) updateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "locationID", airquality.MsgLocationNotFound)
	if !ok {
		return
	}
	data, ok := decodeObject(w, r)
	if !ok {
		return
	}
	feat, err := s.deps.Service.UpdateLocation(r.Context(), auth.UserFrom(r.Context()), id, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, feat)
}

func (s *Server) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "locationID", airquality.MsgLocationNotFound)
	if !ok {
		return
	}
	if err := s.deps.Service.DeleteLocation(r.Context(), auth.UserFrom(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createMeasurement(w http.ResponseWriter, r *http.Request) {
	locID, ok := pathID(w, r, "locationID", airquality.MsgLocationNotFound)
	if !ok {
		return
	}
	data, ok := decodeObject(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Service.CreateMeasurement(r.Context(), auth.UserFrom(r.Context()), locID, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMeasurement(w, res, http.StatusCreated)
}

func (s *Server) updateMeasurement(w http.ResponseWriter, r *http.Request) {
	locID, ok := pathID(w, r, "locationID", airquality.MsgLocationNotFound)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "measurementID", airquality.MsgMeasurementNotFound)
	if !ok {
		return
	}
	data, ok := decodeObject(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Service.UpdateMeasurement(r.Context(), auth.UserFrom(r.Context()), locID, id, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMeasurement(w, res, http.StatusOK)
}

func (s *Server) deleteMeasurement(w http.ResponseWriter, r *http.Request) {
	locID, ok := pathID(w, r, "locationID", airquality.MsgLocationNotFound)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "measurementID", airquality.MsgMeasurementNotFound)
	if !ok {
		return
	}
	if err := s.deps.Service.DeleteMeasurement(r.Context(), auth.UserFrom(r.Context()), locID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeMeasurement answers 204 for a promoted measurement, which no longer
// exists here.
func writeMeasurement(w http.ResponseWriter, res *airquality.MeasurementResult, status int) {
	if res.Promoted {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, status, res.View)
}
