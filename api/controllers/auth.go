package controllers

import (
	"net/http"

	"github.com/retailpos/retailpos-backend/api/responses"
	"github.com/retailpos/retailpos-backend/api/validators"
	"github.com/retailpos/retailpos-backend/internal/users"
	pkgerrors "github.com/retailpos/retailpos-backend/pkg/errors"
	"github.com/retailpos/retailpos-backend/pkg/logger"
)

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthLogin issues the cashier access token.
func AuthLogin(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), payload.Login, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
