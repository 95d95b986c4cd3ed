package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_Key(t *testing.T) {
	msgType := Type{Domain: "muse", Category: "eeg", Version: "v1"}
	assert.Equal(t, "muse.eeg.v1", msgType.Key())
	assert.Equal(t, msgType.Key(), msgType.String())
}

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name    string
		msgType Type
		valid   bool
	}{
		{"complete", Type{Domain: "muse", Category: "battery", Version: "v1"}, true},
		{"missing domain", Type{Category: "battery", Version: "v1"}, false},
		{"missing category", Type{Domain: "muse", Version: "v1"}, false},
		{"missing version", Type{Domain: "muse", Category: "battery"}, false},
		{"zero value", Type{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.msgType.IsValid())
		})
	}
}

func TestType_Equal(t *testing.T) {
	a := Type{Domain: "muse", Category: "blink", Version: "v1"}
	b := Type{Domain: "muse", Category: "blink", Version: "v1"}
	c := Type{Domain: "muse", Category: "blink", Version: "v2"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
