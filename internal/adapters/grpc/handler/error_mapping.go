package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/ogurasousui/basex-empresa/internal/core/org"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain は ErrorInfo に設定するドメインです。
const ErrorDomain = "empresa.v1"

// ReasonStepFailed は複数ステップ操作の途中失敗を表す ErrorInfo の理由です。
const ReasonStepFailed = "STEP_FAILED"

func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	st := status.New(codeOf(err), err.Error())

	var stepErr *org.StepError
	if errors.As(err, &stepErr) {
		withInfo, detailErr := st.WithDetails(&errdetails.ErrorInfo{
			Reason: ReasonStepFailed,
			Domain: ErrorDomain,
			Metadata: map[string]string{
				"operation_id": stepErr.OperationID,
				"operation":    stepErr.Operation,
				"step":         stepErr.Step,
				"completed":    strings.Join(stepErr.Completed, ","),
				"applied":      strings.Join(stepErr.Applied, ","),
				"partial":      strconv.FormatBool(stepErr.Partial()),
			},
		})
		if detailErr == nil {
			st = withInfo
		}
	}
	return st.Err()
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, org.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, org.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, org.ErrAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, org.ErrReferentialViolation):
		return codes.FailedPrecondition
	case errors.Is(err, org.ErrCodec):
		return codes.DataLoss
	case errors.Is(err, org.ErrTransport):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// StepFailure は gRPC エラーに付与された途中失敗の情報を取り出します。
func StepFailure(err error) (*errdetails.ErrorInfo, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetReason() == ReasonStepFailed {
			return info, true
		}
	}
	return nil, false
}
