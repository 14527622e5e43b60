package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mappingforchange/geokey-airquality/internal/airquality"
	"github.com/mappingforchange/geokey-airquality/internal/auth"
	"github.com/mappingforchange/geokey-airquality/internal/resilience"
	"github.com/mappingforchange/geokey-airquality/internal/serialize"
	"github.com/mappingforchange/geokey-airquality/pkg/geokey"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

// writeError maps service errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr  *airquality.Error
		valErrs serialize.ValidationErrors
		apiErr  *geokey.APIError
	)
	switch {
	case errors.As(err, &reqErr):
		status := http.StatusBadRequest
		switch reqErr.Code {
		case airquality.CodeNotFound:
			status = http.StatusNotFound
		case airquality.CodeForbidden:
			status = http.StatusForbidden
		}
		writeJSON(w, status, errorBody{Error: reqErr.Message})
	case errors.As(err, &valErrs):
		writeJSON(w, http.StatusBadRequest, valErrs)
	case errors.Is(err, auth.ErrTokenInvalid), errors.Is(err, auth.ErrTokenExpired):
		unauthorized(w, r, err)
	case errors.As(err, &apiErr), errors.Is(err, geokey.ErrNotFound),
		errors.Is(err, resilience.ErrOpen), resilience.IsTransient(err):
		zap.L().Warn("api: host request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "The host platform could not be reached."})
	default:
		zap.L().Error("api: request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error."})
	}
}

func unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	msg := "Invalid token."
	if errors.Is(err, auth.ErrTokenExpired) {
		msg = "Token has expired."
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="airquality"`)
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: msg})
}

// decodeObject reads a JSON object body. An empty body is an empty object.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	data := map[string]any{}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&data)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Request body must be a JSON object."})
		return nil, false
	}
	return data, true
}

// pathID parses a numeric path parameter, answering 404 when it is not one.
func pathID(w http.ResponseWriter, r *http.Request, name, notFoundMsg string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusNotFound, errorBody{Error: notFoundMsg})
		return 0, false
	}
	return id, true
}

// readForm parses either a JSON project form or url-encoded form values.
func readForm(w http.ResponseWriter, r *http.Request) (*airquality.ProjectForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var form airquality.ProjectForm
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Request body must be a JSON object."})
			return nil, false
		}
		return &form, true
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid form."})
		return nil, false
	}
	return airquality.ParseProjectForm(r.PostForm), true
}
