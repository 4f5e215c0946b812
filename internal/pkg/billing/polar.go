package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcwilhelm/echowave/internal/pkg/env"
)

const defaultPolarAPIBaseURL = "https://sandbox-api.polar.sh"

// PolarClient is a minimal HTTP client for the payment provider's checkout
// and customer-session endpoints. The webhook side never uses it; events
// arrive on their own channel.
type PolarClient struct {
	AccessToken string
	APIBaseURL  string
	AppBaseURL  string

	HTTPClient *http.Client
}

// Checkout is the provider's checkout session, reduced to what callers need.
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutOptions is the outbound checkout request body.
type CheckoutOptions struct {
	ProductPriceID string            `json:"product_price_id"`
	SuccessURL     string            `json:"success_url"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Amount         int64             `json:"amount,omitempty"`
}

func NewPolarClientFromEnv() *PolarClient {
	return &PolarClient{
		AccessToken: strings.TrimSpace(env.GetEnv("POLAR_ACCESS_TOKEN", "")),
		APIBaseURL:  strings.TrimRight(env.GetEnv("POLAR_API_BASE_URL", defaultPolarAPIBaseURL), "/"),
		AppBaseURL:  strings.TrimRight(env.GetEnv("APP_PUBLIC_URL", "http://localhost:4000"), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckout opens a checkout session with the provider. The success URL
// is normalized to an absolute URL against the configured app base URL.
func (c *PolarClient) CreateCheckout(ctx context.Context, opts CheckoutOptions) (*Checkout, error) {
	if strings.TrimSpace(c.AccessToken) == "" {
		return nil, errors.New("POLAR_ACCESS_TOKEN is not configured")
	}
	if strings.TrimSpace(opts.ProductPriceID) == "" {
		return nil, errors.New("product price id is required")
	}
	opts.SuccessURL = c.AbsoluteSuccessURL(opts.SuccessURL)

	var checkout Checkout
	if err := c.postJSON(ctx, "/v1/checkouts/custom/", opts, &checkout); err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}
	return &checkout, nil
}

// CreateCustomerSession returns a customer portal URL for a provider
// customer id.
func (c *PolarClient) CreateCustomerSession(ctx context.Context, customerID string) (string, error) {
	if strings.TrimSpace(customerID) == "" {
		return "", errors.New("customer id is required")
	}

	body := map[string]string{"customer_id": customerID}
	var result struct {
		CustomerPortalURL string `json:"customer_portal_url"`
	}
	if err := c.postJSON(ctx, "/v1/customer-sessions/", body, &result); err != nil {
		return "", fmt.Errorf("create customer session: %w", err)
	}
	return result.CustomerPortalURL, nil
}

// AbsoluteSuccessURL turns a possibly relative success URL into an absolute
// one using the configured app base URL. Empty input falls back to the app
// base URL itself.
func (c *PolarClient) AbsoluteSuccessURL(successURL string) string {
	s := strings.TrimSpace(successURL)
	if s == "" {
		return c.AppBaseURL
	}
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return c.AppBaseURL + s
}

func (c *PolarClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
