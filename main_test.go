package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"groundlink.klederson.com/internal/fault"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid config", fault.WrapInvalid(fmt.Errorf("%w: fps", fault.ErrInvalidConfig), "Config", "Validate"), 64},
		{"fatal setup", fault.WrapFatal(errors.New("address in use"), "Server", "Start"), 69},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
