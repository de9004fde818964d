package handlers

import (
	"context"
	"net/http"

	"github.com/phuslu/log"

	"fintool-server/src/services"
	"fintool-server/src/util"
)

type VaultRekeyer interface {
	Rekey(ctx context.Context) (services.RekeyReport, error)
}

func RekeyVault(svc VaultRekeyer, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		report, err := svc.Rekey(r.Context())
		if err != nil {
			writeServiceError(w, logger, userID, "rekey vault", err)
			return
		}

		logger.Info().Int64("user_id", userID).Int("users_written", report.UsersWritten).Msg("Vault rekey requested by admin")
		util.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"report":  report,
		})
	}
}
