package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/r2blaze/r2blaze-backend/api/middleware"
	"github.com/r2blaze/r2blaze-backend/api/responses"
	"github.com/r2blaze/r2blaze-backend/api/validators"
	"github.com/r2blaze/r2blaze-backend/internal/orders"
	internalpayments "github.com/r2blaze/r2blaze-backend/internal/payments"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/pagination"
)

type ConflictService interface {
	List(ctx context.Context, status enums.ConflictStatus, params pagination.Params) (*orders.ConflictList, error)
	Resolve(ctx context.Context, id uuid.UUID, input internalpayments.ResolveConflictInput) (*internalpayments.ResolveConflictResult, error)
}

type resolveConflictRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
	Note     string `json:"note" validate:"max=500"`
}

// ListConflicts pages through settlement conflicts, open ones by default.
func ListConflicts(svc ConflictService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "conflict service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status := enums.ConflictStatusOpen
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			if strings.EqualFold(raw, "all") {
				status = ""
			} else {
				parsed, err := enums.ParseConflictStatus(strings.ToLower(raw))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
					return
				}
				status = parsed
			}
		}

		list, err := svc.List(ctx, status, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ResolveConflict records an operator's accept or reject decision.
func ResolveConflict(svc ConflictService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "conflict service unavailable"))
			return
		}

		principal := middleware.PrincipalFromContext(ctx)
		if principal == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin session required"))
			return
		}

		conflictID, err := uuid.Parse(chi.URLParam(r, "conflictId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid conflict id"))
			return
		}

		var req resolveConflictRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		decision, err := enums.ParseConflictDecision(req.Decision)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}

		result, err := svc.Resolve(ctx, conflictID, internalpayments.ResolveConflictInput{
			Decision: decision,
			Note:     req.Note,
			Actor:    principal.Actor(),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"conflict_id": conflictID.String(),
				"decision":    decision,
			}), "settlement_conflict.resolved")
		}
		responses.WriteSuccess(w, result)
	}
}
