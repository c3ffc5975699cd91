package provider

import (
	"errors"
	"net/http"

	"github.com/strefethen/connect-bridge-go/internal/apperrors"
	"github.com/strefethen/connect-bridge-go/internal/host/mopidy"
	"github.com/strefethen/connect-bridge-go/internal/reconcile"
	"github.com/strefethen/connect-bridge-go/internal/session"
)

// toAppError maps device and host failures onto API errors.
func toAppError(err error) error {
	if err == nil {
		return nil
	}

	var (
		appErr      *apperrors.AppError
		lost        *session.DeviceLostError
		remote      *session.RemoteError
		rpcErr      *mopidy.RPCError
		unreachable *mopidy.UnreachableError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, reconcile.ErrLockTimeout):
		return apperrors.NewUnavailableError(apperrors.ErrorCodeReconcileBusy, "Reconciliation in progress, retry later")
	case errors.As(err, &lost):
		return apperrors.NewUpstreamError(apperrors.ErrorCodeDeviceLost, "Device is no longer available", err)
	case errors.Is(err, session.ErrDeviceNotResolved):
		return apperrors.NewAppError(apperrors.ErrorCodeDeviceNotResolved, "No device matches the configured name", http.StatusConflict, nil)
	case errors.As(err, &remote):
		return apperrors.NewUpstreamError(apperrors.ErrorCodeRemoteRejected, remote.Message, err)
	case errors.As(err, &unreachable):
		return apperrors.NewUnavailableError(apperrors.ErrorCodeHostUnreachable, "Host is unreachable")
	case errors.As(err, &rpcErr):
		return apperrors.NewUpstreamError(apperrors.ErrorCodeHostRejected, rpcErr.Message, err)
	}
	return apperrors.NewUpstreamError(apperrors.ErrorCodeUpstreamError, "Upstream request failed", err)
}
