package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsoluteSuccessURL(t *testing.T) {
	c := &PolarClient{AppBaseURL: "https://echowave.example"}

	tests := []struct {
		in   string
		want string
	}{
		{"", "https://echowave.example"},
		{"/thanks", "https://echowave.example/thanks"},
		{"thanks", "https://echowave.example/thanks"},
		{"https://other.example/done", "https://other.example/done"},
		{"http://other.example/done", "http://other.example/done"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.AbsoluteSuccessURL(tt.in), "input %q", tt.in)
	}
}

func TestCreateCheckout(t *testing.T) {
	var gotAuth string
	var gotBody CheckoutOptions

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/checkouts/custom/", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "co_1", "url": "https://polar.example/checkout/co_1"}`))
	}))
	defer srv.Close()

	c := &PolarClient{
		AccessToken: "polar_at_test",
		APIBaseURL:  srv.URL,
		AppBaseURL:  "https://echowave.example",
		HTTPClient:  srv.Client(),
	}

	checkout, err := c.CreateCheckout(context.Background(), CheckoutOptions{
		ProductPriceID: "price_1",
		SuccessURL:     "/thanks",
		CustomerEmail:  "buyer@example.com",
		Metadata:       map[string]string{"userId": "7", "tokenQuantity": "3"},
		Amount:         300,
	})
	require.NoError(t, err)

	assert.Equal(t, "co_1", checkout.ID)
	assert.Equal(t, "https://polar.example/checkout/co_1", checkout.URL)
	assert.Equal(t, "Bearer polar_at_test", gotAuth)
	assert.Equal(t, "https://echowave.example/thanks", gotBody.SuccessURL)
	assert.Equal(t, "price_1", gotBody.ProductPriceID)
	assert.Equal(t, int64(300), gotBody.Amount)
	assert.Equal(t, "3", gotBody.Metadata["tokenQuantity"])
}

func TestCreateCheckoutProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid price"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := &PolarClient{AccessToken: "t", APIBaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := c.CreateCheckout(context.Background(), CheckoutOptions{ProductPriceID: "price_x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestCreateCheckoutRequiresConfig(t *testing.T) {
	c := &PolarClient{}
	_, err := c.CreateCheckout(context.Background(), CheckoutOptions{ProductPriceID: "p"})
	require.Error(t, err)

	c.AccessToken = "t"
	_, err = c.CreateCheckout(context.Background(), CheckoutOptions{})
	require.Error(t, err)
}

func TestCreateCustomerSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/customer-sessions/", r.URL.Path)
		_, _ = w.Write([]byte(`{"customer_portal_url": "https://polar.example/portal/abc"}`))
	}))
	defer srv.Close()

	c := &PolarClient{AccessToken: "t", APIBaseURL: srv.URL, HTTPClient: srv.Client()}
	url, err := c.CreateCustomerSession(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "https://polar.example/portal/abc", url)
}
