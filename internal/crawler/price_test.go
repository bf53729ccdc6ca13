package crawler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want string
	}{
		{"nil", nil, "0 €"},
		{"float", 9.5, "9.5 €"},
		{"whole float", 25.0, "25 €"},
		{"int", 12, "12 €"},
		{"json number", json.Number("14.90"), "14.9 €"},
		{"comma decimal text", "12,90 €", "12,90 €"},
		{"dot decimal text", "EUR 7.50", "7.50 €"},
		{"plain digits", "30", "30 €"},
		{"no digits", "no price", "0 €"},
		{"empty", "", "0 €"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePrice(tt.raw))
		})
	}
}
