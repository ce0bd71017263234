package handlers

import (
	"errors"
	"net/http"

	"moviepicker/internal/database"
	"moviepicker/internal/logging"
	"moviepicker/internal/services"
	"moviepicker/internal/utils"
)

const reasonInvalidRequest = "invalid_request"

// respondServiceError maps service and storage errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, services.ErrUpstreamUnavailable):
		logging.Ctx(r.Context()).Warn().Err(err).Str("action", action).Msg("Plex server unavailable")
		utils.RespondError(w, services.ErrUpstreamUnavailable.Error(), services.ReasonUpstreamUnreachable, http.StatusServiceUnavailable)
	case errors.Is(err, services.ErrEmptyCatalog):
		utils.RespondError(w, services.ErrEmptyCatalog.Error(), services.ReasonEmptyCatalog, http.StatusNotFound)
	case errors.Is(err, services.ErrNoMatches):
		utils.RespondError(w, services.ErrNoMatches.Error(), services.ReasonEmptyAfterFilter, http.StatusNotFound)
	case errors.Is(err, services.ErrNotFound), errors.Is(err, database.ErrNotFound):
		utils.RespondError(w, "Not found", services.ReasonNotFound, http.StatusNotFound)
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("action", action).Msg("Request failed")
		utils.RespondError(w, "Failed to "+action, services.ReasonInternal, http.StatusInternalServerError)
	}
}

func respondBadRequest(w http.ResponseWriter, message string) {
	utils.RespondError(w, message, reasonInvalidRequest, http.StatusBadRequest)
}
