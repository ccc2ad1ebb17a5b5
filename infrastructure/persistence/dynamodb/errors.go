package dynamodb

import (
	"context"
	"errors"
	"strconv"

	pkgerrors "wedding-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"
)

var transientCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ThrottlingException":                    true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"TransactionConflictException":           true,
}

// classify maps an SDK error to the AppError taxonomy. Conditional check
// failures are handled by each operation before reaching here.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.GetAppError(err) != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pkgerrors.NewTimeoutError(op).WithCause(err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewUnavailableError("storage").WithCode("CIRCUIT_OPEN").WithCause(err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && transientCodes[apiErr.ErrorCode()] {
		return pkgerrors.NewUnavailableError("storage").WithCode(apiErr.ErrorCode()).WithCause(err)
	}
	return pkgerrors.NewUnavailableError("storage").WithCause(err)
}

func conditionFailed(err error) (*types.ConditionalCheckFailedException, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf, true
	}
	return nil, false
}

// breakerSuccess keeps expected business outcomes from tripping the breaker.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if _, ok := conditionFailed(err); ok {
		return true
	}
	return false
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
