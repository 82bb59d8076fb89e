package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", NewTransientError(errors.New("x"), 503), true},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("x"), 429), "resend: send"), true},
		{"conn reset", fmt.Errorf("post: %w", syscall.ECONNRESET), true},
		{"io timeout text", errors.New("read tcp: i/o timeout"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"permanent", errors.New("invalid recipient"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestHTTPError(t *testing.T) {
	err := HTTPError("resend", 503, "upstream down\n")
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "upstream down")

	err = HTTPError("resend", 422, `{"message":"invalid to"}`)
	assert.False(t, IsTransient(err))
}
