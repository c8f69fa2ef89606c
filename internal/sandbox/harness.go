package sandbox

import (
	"context"
	"errors"
)

// Unit is a loaded, invocable entry point.
type Unit struct {
	Entry    string
	Language string

	fn     Func
	limits Limits
}

// Invoke calls the entry point exactly once with input and returns its result
// unmodified. Type checking the result is the caller's job.
//
// Any failure is returned as an *Error: KindTimeout when the wall-clock limit
// or ctx expires, KindStepLimit when the step budget runs out, KindInvocation
// for everything raised by the generated code. Nothing is retried.
func (u *Unit) Invoke(ctx context.Context, input string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, u.limits.Timeout)
	defer cancel()

	out, err := u.fn.Call(ctx, input)
	if err == nil {
		return out, nil
	}

	var se *Error
	if errors.As(err, &se) {
		if se.Entry == "" {
			se.Entry = u.Entry
		}
		return nil, se
	}
	if ctx.Err() != nil {
		return nil, newError(KindTimeout, u.Entry, err, "The '%s' logic did not finish within %s", u.Entry, u.limits.Timeout)
	}
	return nil, newError(KindInvocation, u.Entry, err, "%s", err.Error())
}
