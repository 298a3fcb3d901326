package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/truthstamp/internal/model"
)

type errorBody struct {
	Error string          `json:"error"`
	Kind  model.ErrorKind `json:"kind"`
}

// statusFor maps an error class onto an HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindUnauthorized:
		return http.StatusUnauthorized
	case model.KindAlreadyInitialized, model.KindAlreadyRegistered:
		return http.StatusConflict
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("api: internal error", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}
