package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCompatible(t *testing.T) {
	tests := []struct {
		name   string
		client string
		min    string
		want   bool
	}{
		{"equal", "1.2.3", "1.2.3", true},
		{"patch above", "1.2.4", "1.2.3", true},
		{"patch below", "1.2.2", "1.2.3", false},
		{"minor above", "1.3.0", "1.2.9", true},
		{"minor below", "1.1.9", "1.2.0", false},
		{"major above", "2.0.0", "1.9.9", true},
		{"major below", "1.9.9", "2.0.0", false},
		{"no client version", "", "1.0.0", true},
		{"no minimum", "0.0.1", "", true},
		{"malformed client fails open", "banana", "1.0.0", true},
		{"partial client fails open", "1.2", "1.0.0", true},
		{"negative component fails open", "1.-2.0", "1.0.0", true},
		{"malformed minimum fails open", "0.0.1", "oops", true},
		{"whitespace tolerated", " 1.2.3 ", "1.2.3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VersionCompatible(tt.client, tt.min))
		})
	}
}
