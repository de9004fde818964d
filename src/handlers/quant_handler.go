package handlers

import (
	"context"
	"net/http"

	"github.com/phuslu/log"

	"fintool-server/src/models"
	"fintool-server/src/services"
	"fintool-server/src/util"
)

type CompositionResolver interface {
	Resolve(ctx context.Context, userID int64, opts services.CompositionOptions) (models.Composition, error)
}

// GetComposition returns the simulation inputs derived from cached
// holdings. The body is optional.
func GetComposition(svc CompositionResolver, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var opts services.CompositionOptions
		if err := util.DecodeJSON(r, &opts, true); err != nil {
			logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to decode composition request body")
			util.WriteError(w, http.StatusBadRequest, err.Error(), "")
			return
		}

		composition, err := svc.Resolve(r.Context(), userID, opts)
		if err != nil {
			writeServiceError(w, logger, userID, "resolve composition", err)
			return
		}

		util.WriteJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
			models.Composition
		}{true, composition})
	}
}
