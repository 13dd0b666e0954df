package phasedriver

import (
	"errors"
	"testing"
)

func TestClassifyRevert(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"already proven account", errors.New("execution reverted: already been proven"), true},
		{"phase guard", errors.New("execution reverted: Function must be called during the correct phase"), true},
		{"invalid opcode", errors.New("invalid opcode: opcode 0xfe not defined"), true},
		{"invalid root hash", errors.New("execution reverted: Invalid root hash"), true},
		{"already committed", errors.New("execution reverted: wasn't changed or has already been committed"), true},
		{"invalid batch header", errors.New("execution reverted: Invalid batch header."), true},
		{"index out of bounds", errors.New("execution reverted: Index out of bounds."), true},
		{"unrelated revert", errors.New("execution reverted: insufficient balance"), false},
		{"transport error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyRevert(tt.err); got != tt.want {
				t.Errorf("classifyRevert(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
