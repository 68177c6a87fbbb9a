package service

import (
	"context"

	"offlinejudge/internal/judge/model"
	appErr "offlinejudge/pkg/errors"
)

// lookupProblem validates sub and returns the problem it targets.
func (s *Service) lookupProblem(ctx context.Context, sub model.Submission) (*model.Problem, error) {
	if sub.QuestionID == "" {
		return nil, appErr.ValidationError("question_id", "required")
	}
	if len(sub.Code) > s.maxCodeBytes {
		return nil, appErr.Newf(appErr.CodeTooLarge, "code exceeds %d bytes", s.maxCodeBytes)
	}
	return s.problems.Get(ctx, sub.QuestionID)
}
