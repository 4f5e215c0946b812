package billing

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func metadataFromMap(t *testing.T, m map[string]string) EventMetadata {
	t.Helper()
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	var meta EventMetadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	return meta
}

func TestCheckoutIntentRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		userID uint
		qty    int64
		price  int64
	}{
		{1, 1, 100},
		{7, 3, 100},
		{42, 25, 250},
		{123456, 999, 1},
	} {
		req := EncodeCheckoutIntent(CheckoutIntent{
			UserID:          tc.userID,
			UserEmail:       "buyer@example.com",
			TokenIdentifier: "idp|" + strconv.FormatUint(uint64(tc.userID), 10),
			TokenQuantity:   tc.qty,
		}, "price_1", tc.price)

		assert.Equal(t, tc.qty*tc.price, req.AmountCents)
		assert.Equal(t, "price_1", req.PriceID)

		decoded := DecodeCheckoutIntent(metadataFromMap(t, req.Metadata))
		assert.Equal(t, tc.userID, decoded.UserID)
		assert.Equal(t, tc.qty, decoded.TokenQuantity)
		assert.Equal(t, "buyer@example.com", decoded.UserEmail)
	}
}

func TestEncodeClampsQuantityToOne(t *testing.T) {
	req := EncodeCheckoutIntent(CheckoutIntent{UserID: 1}, "price_1", 100)
	assert.Equal(t, int64(100), req.AmountCents)
	assert.Equal(t, "1", req.Metadata["tokenQuantity"])
}

func TestDecodeToleratesPartialMetadata(t *testing.T) {
	decoded := DecodeCheckoutIntent(EventMetadata{})
	assert.Zero(t, decoded.UserID)
	assert.Zero(t, decoded.TokenQuantity)

	decoded = DecodeCheckoutIntent(metadataFromMap(t, map[string]string{
		"tokenIdentifier": "idp|abc",
		"tokenQuantity":   "not-a-number",
	}))
	assert.Equal(t, "idp|abc", decoded.TokenIdentifier)
	assert.Zero(t, decoded.TokenQuantity)
}

func TestMetadataAcceptsNumericValues(t *testing.T) {
	// Older records and dashboard edits deliver numbers where we write
	// strings; the envelope must decode either way.
	var meta EventMetadata
	require.NoError(t, json.Unmarshal([]byte(`{"userId": 7, "tokenQuantity": 3}`), &meta))

	decoded := DecodeCheckoutIntent(meta)
	assert.Equal(t, uint(7), decoded.UserID)
	assert.Equal(t, int64(3), decoded.TokenQuantity)
}
