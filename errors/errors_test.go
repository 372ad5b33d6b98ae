package errors_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"gohan/variantstore/errors"

	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("Is", func(t *testing.T) {
		malformed := errors.MalformedParameter("region", "1:a-b", "bad start")
		timeout := errors.Timeout("count", time.Second)
		backend := errors.BackendUnavailable("elasticsearch", fmt.Errorf("connection refused"))

		tests := []struct {
			err    error
			target errors.Code
			exp    bool
		}{
			{err: malformed, target: errors.ErrMalformedParameter, exp: true},
			{err: malformed, target: errors.ErrUnknownParameter, exp: false},
			{err: errors.Wrap(malformed, "translating"), target: errors.ErrMalformedParameter, exp: true},
			{err: timeout, target: errors.ErrTimeout, exp: true},
			{err: backend, target: errors.ErrBackendUnavailable, exp: true},
			{err: errors.BatchAborted(backend, 2, "k"), target: errors.ErrBatchAborted, exp: true},
			{err: fmt.Errorf("plain"), target: errors.ErrTimeout, exp: false},
		}

		for i, test := range tests {
			t.Run(fmt.Sprintf("test-%d", i), func(t *testing.T) {
				assert.Equal(t, test.exp, errors.Is(test.err, test.target))
			})
		}
	})

	t.Run("CodeOf", func(t *testing.T) {
		assert.Equal(t, errors.ErrUnresolvedReference, errors.CodeOf(errors.UnresolvedReference("cohort", "ALL")))
		assert.Equal(t, errors.Code(""), errors.CodeOf(fmt.Errorf("plain")))
	})

	t.Run("messages name the parameter and raw value", func(t *testing.T) {
		err := errors.MalformedParameter("population-alternate-frequency", "1kG<0.1", "expected study:population")
		assert.Contains(t, err.Error(), "population-alternate-frequency")
		assert.Contains(t, err.Error(), "1kG<0.1")
	})

	t.Run("MarshalJSON", func(t *testing.T) {
		out := map[string]string{}
		err := errors.WithMessage(errors.UnknownParameter("colour"), "parsing")
		assert.NoError(t, json.Unmarshal([]byte(errors.MarshalJSON(err)), &out))
		assert.Equal(t, string(errors.ErrUnknownParameter), out["code"])
		assert.Contains(t, out["wrapped"], "parsing")
	})
}
