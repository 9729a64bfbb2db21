package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindMapping(t *testing.T) {
	specs := map[string]struct {
		err     error
		sentinel error
		code    int
		status  int
	}{
		"validation":     {err: Validation("bad %s", "input"), sentinel: ErrValidation, code: CodeInvalidParams, status: http.StatusBadRequest},
		"not found":      {err: NotFound("proposal %s not found", "x"), sentinel: ErrNotFound, code: CodeNotFound, status: http.StatusNotFound},
		"invalid state":  {err: InvalidState("closed"), sentinel: ErrInvalidState, code: CodeInvalidState, status: http.StatusConflict},
		"invalid option": {err: InvalidOption("nope"), sentinel: ErrInvalidOption, code: CodeInvalidParams, status: http.StatusBadRequest},
		"duplicate":      {err: DuplicateVote("again"), sentinel: ErrDuplicateVote, code: CodeDuplicateVote, status: http.StatusConflict},
		"unauthorized":   {err: Unauthorized(), sentinel: ErrUnauthorized, code: CodePolicy, status: http.StatusUnauthorized},
		"forbidden":      {err: Forbidden("disabled"), sentinel: ErrForbidden, code: CodePolicy, status: http.StatusForbidden},
		"rate limited":   {err: RateLimited(), sentinel: ErrRateLimited, code: CodeRateLimited, status: http.StatusTooManyRequests},
		"method":         {err: MethodNotFound("soulvan.nope"), sentinel: ErrMethodNotFound, code: CodeMethodNotFound, status: http.StatusNotFound},
		"upstream":       {err: Upstream(-5, "Block not found"), sentinel: ErrUpstream, code: -5, status: http.StatusInternalServerError},
		"transport":      {err: Transport(errors.New("connection refused")), sentinel: ErrUpstream, code: CodeInternal, status: http.StatusInternalServerError},
		"foreign":        {err: errors.New("boom"), code: CodeInternal, status: http.StatusInternalServerError},
	}
	for name, spec := range specs {
		t.Run(name, func(t *testing.T) {
			if spec.sentinel != nil {
				assert.True(t, errors.Is(spec.err, spec.sentinel))
				wrapped := fmt.Errorf("context: %w", spec.err)
				assert.True(t, errors.Is(wrapped, spec.sentinel))
			}
			assert.Equal(t, spec.code, CodeOf(spec.err))
			assert.Equal(t, spec.status, HTTPStatus(spec.err))
		})
	}
}

func TestSentinelsDoNotCrossMatch(t *testing.T) {
	err := NotFound("proposal abc not found")
	assert.False(t, errors.Is(err, ErrInvalidState))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "proposal abc not found", err.Error())
}

func TestUpstreamZeroCodeFallsBack(t *testing.T) {
	err := Upstream(0, "odd")
	require.Equal(t, CodeInternal, CodeOf(err))
}
