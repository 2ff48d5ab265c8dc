package apiserver

import (
	"encoding/json"
	"net/http"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// statusBody is the Kubernetes-Status-shaped error body from spec.md §6.
type statusBody struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Code       int    `json:"code"`
}

// httpStatusForKind maps an apierrors.Kind to its HTTP status, per
// spec.md §6/§7.
func httpStatusForKind(k apierrors.Kind) int {
	switch k {
	case apierrors.KindNotFound:
		return http.StatusNotFound
	case apierrors.KindAlreadyExists, apierrors.KindConflict:
		return http.StatusConflict
	case apierrors.KindBadRequest:
		return http.StatusBadRequest
	case apierrors.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case apierrors.KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case apierrors.KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatusForKind(apierrors.KindOf(err))
	writeJSON(w, status, statusBody{
		APIVersion: "v1",
		Kind:       "Status",
		Status:     "Failure",
		Message:    err.Error(),
		Code:       status,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
