package errors

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	gerrors "gohan/variantstore/errors"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{gerrors.MalformedParameter("region", "1:a", "bad start"), http.StatusBadRequest},
		{gerrors.UnknownParameter("colour"), http.StatusBadRequest},
		{gerrors.UnresolvedReference("cohort", "ALL"), http.StatusNotFound},
		{gerrors.UnsupportedOperation("widecolumn", "GetPhased"), http.StatusNotImplemented},
		{gerrors.BackendUnavailable("elasticsearch", fmt.Errorf("dial tcp")), http.StatusServiceUnavailable},
		{gerrors.Timeout("count", time.Second), http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.err.Error(), func(t *testing.T) {
			dto := FromError(test.err)
			assert.Equal(t, test.status, dto.Code)
			assert.Equal(t, http.StatusText(test.status), dto.Message)
			assert.Len(t, dto.Errors, 1)
			assert.Equal(t, test.err.Error(), dto.Errors[0].Message)
		})
	}
}
