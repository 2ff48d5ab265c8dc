package apiserver

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/CloudNebulaProject/reddwarf/pkg/apierrors"
)

// decodeBody enforces a JSON content type (spec.md §6's UnsupportedMediaType
// status) and decodes the request body into out.
func decodeBody(r *http.Request, out any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return apierrors.UnsupportedMediaType("Content-Type must be application/json")
		}
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return apierrors.BadRequest("malformed request body: " + err.Error())
	}
	return nil
}

func watchRequested(r *http.Request) bool {
	return r.URL.Query().Get("watch") == "true"
}

func readAll(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, apierrors.BadRequest("read request body: " + err.Error())
	}
	return data, nil
}
