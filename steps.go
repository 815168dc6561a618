package holdpoint

import (
	"context"

	"github.com/holdpoint/holdpoint/pkg/api"
)

// SetStep returns a step that merges the given fields into the state and
// transitions to next.
func SetStep(fields State, next string) StepFunc {
	return func(ctx context.Context, state State) (Result, error) {
		return Result{Delta: fields.Clone(), Next: next}, nil
	}
}

// PassStep returns a step that changes nothing and transitions to next.
func PassStep(next string) StepFunc {
	return SetStep(nil, next)
}

// RequestApproval decorates a step result with a pending operation so the
// following gate step is risk-checked against it:
//
//	return holdpoint.RequestApproval(
//	    holdpoint.Result{Next: "discharge"},
//	    "discharge_patient",
//	    map[string]any{"patient_id": id},
//	), nil
func RequestApproval(res Result, operation string, args map[string]any) Result {
	res.Pending = &api.Operation{Name: operation, Args: args}
	return res
}
