package billing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Token purchases are recognized by their product label, case-insensitively.
const tokenProductMarker = "token"

var leadingQuantityPattern = regexp.MustCompile(`^(\d+)\s+`)

// IsTokenProduct reports whether a product label marks a token purchase.
func IsTokenProduct(label string) bool {
	return strings.Contains(strings.ToLower(label), tokenProductMarker)
}

// productLabel extracts the product label from an event. order.paid carries
// it on the first line item, order.created directly on the data object.
func productLabel(data *EventData) string {
	if len(data.Items) > 0 && strings.TrimSpace(data.Items[0].Label) != "" {
		return data.Items[0].Label
	}
	return data.ProductName
}

// ResolveTokenQuantity determines how many tokens a purchase grants, in
// priority order: explicit metadata quantity, a leading integer in the
// product label ("3 Audio Tokens"), then the paid amount at one token per
// dollar (minor units / 100, rounded, minimum 1). The chain exists because
// the provider's payload shape differs between order variants and older
// records miss metadata entirely.
func ResolveTokenQuantity(meta EventMetadata, label string, amountCents int64) int64 {
	if qty, err := strconv.ParseInt(strings.TrimSpace(meta.TokenQuantity.String()), 10, 64); err == nil && qty > 0 {
		return qty
	}

	if m := leadingQuantityPattern.FindStringSubmatch(strings.TrimSpace(label)); m != nil {
		if qty, err := strconv.ParseInt(m[1], 10, 64); err == nil && qty > 0 {
			return qty
		}
	}

	qty := int64(math.Round(float64(amountCents) / 100.0))
	if qty < 1 {
		qty = 1
	}
	return qty
}
