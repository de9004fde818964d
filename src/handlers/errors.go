package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/phuslu/log"

	"fintool-server/src/plaid"
	"fintool-server/src/services"
	"fintool-server/src/util"
)

const (
	codeRelinkRequired          = "ITEM_RELINK_REQUIRED"
	codeInvestmentsNotConsented = "INVESTMENTS_NOT_CONSENTED"
	codeProductNotEnabled       = "PRODUCT_NOT_ENABLED"
	codeSyncIncomplete          = "SYNC_INCOMPLETE"

	msgRelinkRequired     = "linked account must be reconnected"
	msgServiceUnavailable = "service unavailable"
	msgProductNotEnabled  = "Investments access is not enabled for this item. Please reconnect your account to grant consent."
)

// writeServiceError maps a service failure to a response. Upstream bodies
// and messages never reach the client.
func writeServiceError(w http.ResponseWriter, logger *log.Logger, userID int64, op string, err error) {
	logger.Error().Err(err).Int64("user_id", userID).Str("op", op).Msg("Failed to " + op)

	var consent *services.ConsentError
	switch {
	case errors.As(err, &consent):
		util.WriteError(w, http.StatusConflict, consent.Error(), codeInvestmentsNotConsented)
		return
	case errors.Is(err, services.ErrMissingPublicToken):
		util.WriteError(w, http.StatusBadRequest, err.Error(), "")
		return
	case errors.Is(err, services.ErrSyncPageLimit), errors.Is(err, services.ErrSyncMutationRetries):
		util.WriteError(w, http.StatusServiceUnavailable, msgServiceUnavailable, codeSyncIncomplete)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		util.WriteError(w, http.StatusServiceUnavailable, msgServiceUnavailable, "")
		return
	}

	if perr, ok := plaid.AsError(err); ok {
		switch {
		case perr.IsProductNotEnabled():
			util.WriteError(w, http.StatusConflict, msgProductNotEnabled, codeProductNotEnabled)
		case perr.IsClientError() || perr.IsForbidden():
			util.WriteError(w, http.StatusConflict, msgRelinkRequired, codeRelinkRequired)
		default:
			util.WriteError(w, http.StatusBadGateway, msgServiceUnavailable, "")
		}
		return
	}

	util.WriteError(w, http.StatusInternalServerError, "internal error", "")
}
