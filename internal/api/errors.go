package api

import (
	"errors"
	"net/http"

	"github.com/rezozero/subscribeme/internal/pkg/httputil"
	"github.com/rezozero/subscribeme/internal/pkg/logger"
	"github.com/rezozero/subscribeme/internal/service/subscription"
	"github.com/rezozero/subscribeme/pkg/subscriber"
)

// respondServiceError maps service and adapter errors to HTTP statuses.
// Configuration problems are logged and answered with a generic message so
// credentials and list ids never reach API consumers.
func respondServiceError(w http.ResponseWriter, err error) {
	var (
		subErr  *subscriber.SubscribeError
		sendErr *subscriber.SendError
	)

	switch {
	case errors.Is(err, subscription.ErrContactBusy):
		httputil.Error(w, http.StatusConflict, "contact_busy", err.Error())
	case errors.Is(err, subscriber.ErrUnknownPlatform):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, subscriber.ErrInvalidArgument):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, subscriber.ErrUnsupportedCapability):
		httputil.Error(w, http.StatusNotImplemented, "unsupported", err.Error())
	case errors.Is(err, subscriber.ErrConfiguration):
		logger.Error("platform misconfigured", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "configuration", "platform is not configured correctly")
	case errors.As(err, &subErr), errors.As(err, &sendErr):
		httputil.JSON(w, http.StatusBadGateway, httputil.ErrorResponse{
			Error:   err.Error(),
			Code:    "platform_error",
			Details: upstreamDetails(err),
		})
	default:
		httputil.InternalError(w, err)
	}
}

// upstreamDetails exposes the platform's status code when it answered.
func upstreamDetails(err error) map[string]any {
	var apiErr *subscriber.APIResponseError
	if errors.As(err, &apiErr) {
		return map[string]any{"upstream_status": apiErr.StatusCode}
	}
	var tErr *subscriber.TransportError
	if errors.As(err, &tErr) {
		return map[string]any{"upstream_status": 0}
	}
	return nil
}
