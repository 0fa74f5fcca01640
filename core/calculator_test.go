package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOperation(t *testing.T) {
	current := dec("100")

	tests := []struct {
		op      string
		want    string
		wantErr bool
	}{
		{op: "", want: "100"},
		{op: "  ", want: "100"},
		{op: "150", want: "150"},
		{op: "149,90", want: "149.9"},
		{op: "*1,2", want: "120"},
		{op: "/4", want: "25"},
		{op: "+10", want: "110"},
		{op: "-5.5", want: "94.5"},
		{op: "/0", wantErr: true},
		{op: "x5", wantErr: true},
		{op: "+", wantErr: true},
		{op: "12a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			got, err := ApplyOperation(current, tt.op)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidOperation)
				assert.True(t, current.Equal(got))
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestCheckPriceGuard(t *testing.T) {
	tests := []struct {
		name    string
		next    string
		blocked bool
	}{
		{"double is allowed", "200", false},
		{"above double", "200.01", true},
		{"half is allowed", "50", false},
		{"below half", "49.99", true},
		{"zero passes", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPriceGuard(dec("100"), dec(tt.next), 0.5, 2)
			if tt.blocked {
				assert.ErrorIs(t, err, ErrPriceGuard)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.NoError(t, CheckPriceGuard(dec("0"), dec("999"), 0.5, 2))
}
