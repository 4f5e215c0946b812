package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTokenProduct(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"1 Audio Token", true},
		{"Audio Tokens (bundle)", true},
		{"TOKEN pack", true},
		{"Pro Subscription", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTokenProduct(tt.label), "label %q", tt.label)
	}
}

func TestResolveTokenQuantity(t *testing.T) {
	tests := []struct {
		name   string
		meta   map[string]string
		label  string
		amount int64
		want   int64
	}{
		{name: "metadata wins over label and amount", meta: map[string]string{"tokenQuantity": "3"}, label: "1 Audio Token", amount: 700, want: 3},
		{name: "label leading integer", label: "5 Audio Tokens", amount: 100, want: 5},
		{name: "amount fallback", label: "Audio Token", amount: 500, want: 5},
		{name: "amount rounds", label: "Audio Token", amount: 250, want: 3},
		{name: "minimum one", label: "Audio Token", amount: 0, want: 1},
		{name: "garbage metadata falls through", meta: map[string]string{"tokenQuantity": "x"}, label: "2 Audio Tokens", amount: 900, want: 2},
		{name: "non-positive metadata falls through", meta: map[string]string{"tokenQuantity": "0"}, label: "Audio Token", amount: 400, want: 4},
		{name: "integer inside label does not count", label: "Audio Token x3", amount: 100, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var meta EventMetadata
			if v, ok := tt.meta["tokenQuantity"]; ok {
				meta.TokenQuantity = FlexString(v)
			}
			assert.Equal(t, tt.want, ResolveTokenQuantity(meta, tt.label, tt.amount))
		})
	}
}

func TestProductLabelPrefersLineItem(t *testing.T) {
	data := &EventData{
		ProductName: "Audio Token",
		Items:       []OrderItem{{Label: "3 Audio Tokens"}},
	}
	assert.Equal(t, "3 Audio Tokens", productLabel(data))

	data = &EventData{ProductName: "Audio Token"}
	assert.Equal(t, "Audio Token", productLabel(data))
}
