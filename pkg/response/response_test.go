package response

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"LunaCare/pkg/errors"
)

func TestErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.InvalidRequest, http.StatusBadRequest},
		{errors.ReminderSettingsInvalid.WithMessage("interval_minutes must be between %d and %d", 15, 1440), http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", errors.IntakeInvalid), http.StatusBadRequest},
		{errors.Unauthorized, http.StatusUnauthorized},
		{errors.ReminderSettingsNotFound, http.StatusNotFound},
		{errors.ReminderTickBusy, http.StatusConflict},
		{errors.TooManyRequests, http.StatusTooManyRequests},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, errorToHTTPStatus(tc.err), tc.err.Error())
	}
}

func TestErrorCodeAndMessageHidesInternalErrors(t *testing.T) {
	code, msg := errorCodeAndMessage(fmt.Errorf("pq: password authentication failed"))
	assert.Equal(t, "INTERNAL_ERROR", code)
	assert.NotContains(t, msg, "password")

	code, msg = errorCodeAndMessage(errors.InvalidUserID)
	assert.Equal(t, errors.InvalidUserID.Code, code)
	assert.Equal(t, errors.InvalidUserID.Message, msg)
}
