package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/phuslu/log"

	"fintool-server/src/middleware"
	"fintool-server/src/models"
	"fintool-server/src/plaid"
	"fintool-server/src/services"
	"fintool-server/src/util"
)

type LinkTokenCreator interface {
	CreateLinkToken(ctx context.Context, userID int64) (*plaid.LinkToken, error)
}

type PublicTokenExchanger interface {
	ExchangePublicToken(ctx context.Context, userID int64, publicToken string) (string, error)
}

type AccountLister interface {
	Accounts(ctx context.Context, userID int64) (*services.AccountsResult, error)
}

type TransactionSyncer interface {
	Sync(ctx context.Context, userID int64) (*models.TransactionSync, error)
}

type InvestmentSyncer interface {
	Sync(ctx context.Context, userID int64) (*models.Investments, error)
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		util.WriteError(w, http.StatusUnauthorized, "unauthorized", "")
	}
	return userID, ok
}

func CreateLinkToken(svc LinkTokenCreator, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		token, err := svc.CreateLinkToken(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger, userID, "create link token", err)
			return
		}

		util.WriteJSON(w, http.StatusOK, struct {
			Success    bool      `json:"success"`
			LinkToken  string    `json:"link_token"`
			Expiration time.Time `json:"expiration"`
		}{true, token.Token, token.Expiration})
	}
}

func ExchangePublicToken(svc PublicTokenExchanger, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		var req struct {
			PublicToken string `json:"public_token" validate:"required"`
		}
		if err := util.DecodeJSON(r, &req, false); err != nil {
			logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to decode exchange public token request body")
			util.WriteError(w, http.StatusBadRequest, err.Error(), "")
			return
		}

		itemID, err := svc.ExchangePublicToken(r.Context(), userID, req.PublicToken)
		if err != nil {
			writeServiceError(w, logger, userID, "exchange public token", err)
			return
		}

		logger.Info().Int64("user_id", userID).Msg("Exchanged public token and stored item credential")
		util.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"item_id": itemID,
		})
	}
}

func GetAccounts(svc AccountLister, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		result, err := svc.Accounts(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger, userID, "get accounts", err)
			return
		}

		util.WriteJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
			*services.AccountsResult
		}{true, result})
	}
}

func SyncTransactions(svc TransactionSyncer, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		result, err := svc.Sync(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger, userID, "sync transactions", err)
			return
		}

		util.WriteJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
			*models.TransactionSync
		}{true, result})
	}
}

func GetInvestments(svc InvestmentSyncer, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		result, err := svc.Sync(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger, userID, "sync investments", err)
			return
		}

		util.WriteJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"investments": result,
		})
	}
}
