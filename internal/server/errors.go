package server

import (
	"errors"
	"net/http"

	"github.com/IkramBagban/proxlay-sub001/internal/auth"
	"github.com/IkramBagban/proxlay-sub001/internal/gateway"
	paymentdomain "github.com/IkramBagban/proxlay-sub001/internal/payment/domain"
	plandomain "github.com/IkramBagban/proxlay-sub001/internal/plan/domain"
	subscriptiondomain "github.com/IkramBagban/proxlay-sub001/internal/subscription/domain"
	workspacedomain "github.com/IkramBagban/proxlay-sub001/internal/workspace/domain"
	"github.com/gin-gonic/gin"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware renders the last recorded error as a stable
// machine-readable code plus a human message. Handlers record errors via
// AbortWithError and never write error bodies themselves.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, errorPayload{
			Code:    "UNAUTHENTICATED",
			Message: "authentication required",
		}
	case errors.Is(err, subscriptiondomain.ErrInvalidUser),
		errors.Is(err, subscriptiondomain.ErrInvalidPlan),
		errors.Is(err, paymentdomain.ErrValidation),
		errors.Is(err, workspacedomain.ErrValidation),
		errors.Is(err, workspacedomain.ErrInvalidRole):
		return http.StatusBadRequest, errorPayload{
			Code:    "VALIDATION_ERROR",
			Message: "invalid request",
		}
	case errors.Is(err, paymentdomain.ErrMissingSignature):
		return http.StatusBadRequest, errorPayload{
			Code:    "MISSING_SIGNATURE",
			Message: "signature header is required",
		}
	case errors.Is(err, paymentdomain.ErrSignatureInvalid):
		return http.StatusUnauthorized, errorPayload{
			Code:    "SIGNATURE_INVALID",
			Message: "signature verification failed",
		}
	case errors.Is(err, subscriptiondomain.ErrTrialAlreadyUsed):
		return http.StatusConflict, errorPayload{
			Code:    "TRIAL_ALREADY_USED",
			Message: "trial has already been used",
		}
	case errors.Is(err, subscriptiondomain.ErrActiveTrialExists),
		errors.Is(err, subscriptiondomain.ErrActiveSubscriptionExists):
		return http.StatusConflict, errorPayload{
			Code:    "ACTIVE_SUBSCRIPTION_EXISTS",
			Message: "an active subscription already exists",
		}
	case errors.Is(err, subscriptiondomain.ErrNoActiveTrial):
		return http.StatusConflict, errorPayload{
			Code:    "NO_ACTIVE_TRIAL",
			Message: "no active trial to convert",
		}
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, gateway.ErrSubscriptionNotFound),
		errors.Is(err, gateway.ErrPaymentNotFound),
		errors.Is(err, paymentdomain.ErrSubscriptionRowMissing),
		errors.Is(err, workspacedomain.ErrWorkspaceNotFound):
		return http.StatusNotFound, errorPayload{
			Code:    "NOT_FOUND",
			Message: "resource not found",
		}
	case errors.Is(err, workspacedomain.ErrNotMember),
		errors.Is(err, workspacedomain.ErrPermissionDenied):
		return http.StatusForbidden, errorPayload{
			Code:    "PERMISSION_DENIED",
			Message: "permission denied",
		}
	case errors.Is(err, workspacedomain.ErrMemberExists):
		return http.StatusConflict, errorPayload{
			Code:    "MEMBER_ALREADY_EXISTS",
			Message: "user is already a member of this workspace",
		}
	case errors.Is(err, plandomain.ErrNoActivePlan):
		return http.StatusPaymentRequired, errorPayload{
			Code:    "NO_ACTIVE_PLAN",
			Message: "an active subscription is required",
		}
	case errors.Is(err, plandomain.ErrWorkspaceQuotaExceeded),
		errors.Is(err, plandomain.ErrVideoQuotaExceeded),
		errors.Is(err, plandomain.ErrMemberQuotaExceeded):
		return http.StatusForbidden, errorPayload{
			Code:    "QUOTA_EXCEEDED",
			Message: "plan quota exceeded",
		}
	case errors.Is(err, paymentdomain.ErrReconciliationConflict):
		return http.StatusConflict, errorPayload{
			Code:    "RECONCILIATION_CONFLICT",
			Message: "payment captured but entitlement could not be applied",
		}
	case errors.Is(err, gateway.ErrGatewayUnavailable):
		return http.StatusBadGateway, errorPayload{
			Code:    "GATEWAY_UNAVAILABLE",
			Message: "payment gateway unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Code:    "INTERNAL_ERROR",
			Message: "internal server error",
		}
	}
}
