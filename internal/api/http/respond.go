package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"wms-core/internal/apperr"
)

var errInvalidJSON = apperr.New(apperr.KindInvalidArgument, apperr.CodeRequestInvalid, "request: invalid json")

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err through its apperr kind. Errors without a kind are
// reported as internal without leaking their message.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: string(apperr.CodeUnknown), Message: "internal error"})
		return
	}
	writeJSON(w, appErr.Kind.HTTPStatus(), errorBody{
		Code:     string(appErr.Code),
		Message:  appErr.Message,
		Metadata: appErr.Metadata,
	})
}

func decodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return errInvalidJSON
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errInvalidJSON.Because(err)
	}
	return nil
}
