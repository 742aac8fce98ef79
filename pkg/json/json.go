package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/schema"
)

// MaxBodyBytes bounds JSON request bodies. Multipart uploads use their own limits.
const MaxBodyBytes = 1 << 20

var ErrMissingBody = errors.New("missing request body")

func ParseJSON(r *http.Request, model any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrMissingBody
	}

	return json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes)).Decode(model)
}

// ParseValidatedJSON reads the body, checks it against v and only then
// decodes it into model.
func ParseValidatedJSON(r *http.Request, v *schema.Validator, model any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return ErrMissingBody
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) == 0 {
		return ErrMissingBody
	}

	if err := v.Validate(body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, model); err != nil {
		return fmt.Errorf("failed to decode request body: %w", err)
	}

	return nil
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, err error) {
	WriteJSON(w, status, map[string]string{"error": err.Error()})
}
