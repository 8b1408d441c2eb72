package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// loggingErrorHandler reports failed and panicking jobs. Returning nil lets
// the retry policy decide what happens next.
type loggingErrorHandler struct {
	logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) river.ErrorHandler {
	return &loggingErrorHandler{logger: logger}
}

func (h *loggingErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	h.logger.ErrorContext(ctx, "job failed",
		"job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "error", err)
	return nil
}

func (h *loggingErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	h.logger.ErrorContext(ctx, "job panicked",
		"job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "error", fmt.Errorf("panic: %v", panicVal), "trace", trace)
	return nil
}
