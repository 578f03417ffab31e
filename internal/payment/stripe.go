package payment

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/linkmarket/internal/apperror"
)

type StripeConfig struct {
	SecretKey string
	APIBase   string
	Currency  string
	Timeout   time.Duration
}

// StripeClient creates and inspects payment intents.
type StripeClient struct {
	cfg  StripeConfig
	http *http.Client
}

func NewStripeClient(cfg StripeConfig) *StripeClient {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.stripe.com"
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &StripeClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Configured reports whether a secret key is present.
func (c *StripeClient) Configured() bool { return c != nil && c.cfg.SecretKey != "" }

// IntentRequest describes a payment intent to create.
type IntentRequest struct {
	Amount   float64
	Currency string
	UserID   string
	OrderID  string
}

type stripeIntent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out *stripeIntent) error {
	if !c.Configured() {
		return notConfigured("stripe")
	}
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIBase+path, body)
	if err != nil {
		return transportErr("stripe", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportErr("stripe", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var se stripeError
		_, _ = readJSON(resp, &se)
		return apperror.Gateway(resp.StatusCode, firstNonEmpty(se.Error.Message, "stripe returned "+resp.Status))
	}
	if _, err := readJSON(resp, out); err != nil {
		return transportErr("stripe", err)
	}
	return nil
}

func (i stripeIntent) result() *Result {
	return &Result{
		Success:      i.Status == "succeeded",
		PaymentID:    i.ID,
		ClientSecret: i.ClientSecret,
		Status:       i.Status,
		Amount:       FromMinorUnits(i.Amount),
		Currency:     i.Currency,
		OrderID:      i.Metadata["orderId"],
		UserID:       i.Metadata["userId"],
	}
}

// CreatePaymentIntent registers an intent for the amount in minor
// units, tagged with the user and order. Success on the returned
// Result means the intent was created, not captured.
func (c *StripeClient) CreatePaymentIntent(ctx context.Context, r IntentRequest) (*Result, error) {
	minor, err := ToMinorUnits(r.Amount)
	if err != nil {
		return nil, err
	}
	currency := strings.ToLower(firstNonEmpty(r.Currency, c.cfg.Currency))
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(minor, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	if r.UserID != "" {
		form.Set("metadata[userId]", r.UserID)
	}
	if r.OrderID != "" {
		form.Set("metadata[orderId]", r.OrderID)
	}

	var intent stripeIntent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}
	res := intent.result()
	res.Success = true
	return res, nil
}

// VerifyPayment re-fetches the intent; Success is true only once it
// has succeeded.
func (c *StripeClient) VerifyPayment(ctx context.Context, intentID string) (*Result, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, apperror.BadRequest("payment intent id is required")
	}
	var intent stripeIntent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil, &intent); err != nil {
		return nil, err
	}
	return intent.result(), nil
}
