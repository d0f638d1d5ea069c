package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
)

// Error is a resolver error that graphql-go renders with extensions.
type Error struct {
	Message      string
	Code         domain.ErrorCode
	Cause        string
	ArgumentName string
}

func (e *Error) Error() string { return e.Message }

// Extensions implements gqlerrors.ExtendedError.
func (e *Error) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": string(e.Code)}
	if e.Cause != "" {
		ext["cause"] = e.Cause
	}
	if e.ArgumentName != "" {
		ext["argumentName"] = e.ArgumentName
	}
	return ext
}

// toGraphQLError maps service errors to GraphQL errors. Untyped and internal
// failures are logged and reported without their underlying detail.
func toGraphQLError(ctx context.Context, log *zap.Logger, op string, err error) *Error {
	de, ok := domain.AsError(err)
	if !ok {
		de = domain.Internal(err, "failed to %s", op)
	}
	if de.Code == domain.CodeInternal {
		logger.FromContext(ctx, log).Error("graphql operation failed",
			zap.String("operation", op),
			zap.Error(err),
		)
	}
	return &Error{
		Message:      de.Message,
		Code:         de.Code,
		Cause:        de.Cause,
		ArgumentName: de.ArgumentName,
	}
}

func unauthenticated() *Error {
	return &Error{Message: "user not authenticated", Code: domain.CodeForbidden}
}

func badInput(argument string, err error) *Error {
	return &Error{
		Message:      "invalid input: " + err.Error(),
		Code:         domain.CodeBadUserInput,
		ArgumentName: argument,
	}
}
