package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/pinigine/backend/src/utils"
)

// decodeJSONBody decodes the request body into dst and writes a 400 response
// on failure, so callers only need to bail out on error.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.SendJSONError(w, "Invalid request payload", http.StatusBadRequest)
		return err
	}
	return nil
}
