package server

import (
	"FlightSurety/internal/core"
	"FlightSurety/internal/errs"
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps a call failure onto a gRPC status. The errs code is kept in
// the message so clients can match on it.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	if errors.Is(err, core.ErrExecutorStopped) {
		return status.Error(codes.Unavailable, err.Error())
	}
	if errors.Is(err, errs.ErrInvalidCallPayload) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(kindCode(errs.KindOf(err)), err.Error())
}

func kindCode(k errs.Kind) codes.Code {
	switch k {
	case errs.KindUnauthorized:
		return codes.PermissionDenied
	case errs.KindSystemPaused:
		return codes.Unavailable
	case errs.KindInvalidState:
		return codes.FailedPrecondition
	case errs.KindDuplicateAction:
		return codes.AlreadyExists
	case errs.KindValueMismatch:
		return codes.InvalidArgument
	case errs.KindNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}
