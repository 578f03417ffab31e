package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/linkmarket/internal/apperror"
)

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	APIBase      string
	ReturnURL    string
	CancelURL    string
	Currency     string
	Timeout      time.Duration
}

// PayPalClient drives the v1 payments API: create, redirect the payer
// to the approval link, then execute.
type PayPalClient struct {
	cfg  PayPalConfig
	http *http.Client
	now  func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewPayPalClient(cfg PayPalConfig) *PayPalClient {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api-m.sandbox.paypal.com"
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &PayPalClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, now: time.Now}
}

func (c *PayPalClient) Configured() bool {
	return c != nil && c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// CredentialsError marks a 401 or invalid_client answer: the client
// id or secret is wrong, as opposed to a failed payment.
func CredentialsError() *apperror.AppError {
	return &apperror.AppError{
		Code:    apperror.CodePayPalCredentials,
		Message: "PayPal authentication failed: check PAYPAL_CLIENT_ID, PAYPAL_CLIENT_SECRET and PAYPAL_MODE",
		Status:  http.StatusInternalServerError,
	}
}

type paypalError struct {
	Name             string `json:"name"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *PayPalClient) gatewayErr(resp *http.Response) error {
	var pe paypalError
	_, _ = readJSON(resp, &pe)
	if resp.StatusCode == http.StatusUnauthorized || pe.Error == "invalid_client" {
		return CredentialsError()
	}
	return apperror.Gateway(resp.StatusCode,
		firstNonEmpty(pe.Message, pe.ErrorDescription, pe.Name, "paypal returned "+resp.Status))
}

// accessToken returns a cached OAuth token, fetching a new one a
// minute before expiry.
func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExp) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", transportErr("paypal", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transportErr("paypal", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", c.gatewayErr(resp)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if _, err := readJSON(resp, &tok); err != nil {
		return "", transportErr("paypal", err)
	}
	if tok.AccessToken == "" {
		return "", CredentialsError()
	}
	c.token = tok.AccessToken
	c.tokenExp = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func (c *PayPalClient) postJSON(ctx context.Context, path string, in, out any) error {
	if !c.Configured() {
		return notConfigured("paypal")
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return apperror.Internal("encode paypal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBase+path, bytes.NewReader(payload))
	if err != nil {
		return transportErr("paypal", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportErr("paypal", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
		}
		return c.gatewayErr(resp)
	}
	if _, err := readJSON(resp, out); err != nil {
		return transportErr("paypal", err)
	}
	return nil
}

type paypalAmount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type paypalTransaction struct {
	Amount      paypalAmount `json:"amount"`
	Description string       `json:"description,omitempty"`
	Custom      string       `json:"custom,omitempty"`
}

type paypalPayment struct {
	ID           string              `json:"id"`
	State        string              `json:"state"`
	Transactions []paypalTransaction `json:"transactions"`
	Links        []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (p paypalPayment) result() *Result {
	r := &Result{PaymentID: p.ID, Status: p.State}
	for _, l := range p.Links {
		if l.Rel == "approval_url" {
			r.ApprovalURL = l.Href
		}
	}
	if len(p.Transactions) > 0 {
		t := p.Transactions[0]
		r.OrderID = t.Custom
		r.Currency = strings.ToLower(t.Amount.Currency)
		if d, err := decimalFromString(t.Amount.Total); err == nil {
			r.Amount = d
		}
	}
	return r
}

// PaymentRequest describes a PayPal payment to create.
type PaymentRequest struct {
	Amount      float64
	Currency    string
	Description string
	OrderID     string
}

// CreatePayment creates a sale and returns the link the payer must
// visit to approve it.
func (c *PayPalClient) CreatePayment(ctx context.Context, r PaymentRequest) (*Result, error) {
	total, err := formatAmount(r.Amount)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"intent": "sale",
		"payer":  map[string]string{"payment_method": "paypal"},
		"redirect_urls": map[string]string{
			"return_url": c.cfg.ReturnURL,
			"cancel_url": c.cfg.CancelURL,
		},
		"transactions": []paypalTransaction{{
			Amount:      paypalAmount{Total: total, Currency: strings.ToUpper(firstNonEmpty(r.Currency, c.cfg.Currency))},
			Description: firstNonEmpty(r.Description, "Order payment"),
			Custom:      r.OrderID,
		}},
	}
	var p paypalPayment
	if err := c.postJSON(ctx, "/v1/payments/payment", body, &p); err != nil {
		return nil, err
	}
	res := p.result()
	if res.ApprovalURL == "" {
		return nil, apperror.Gateway(http.StatusBadGateway, "paypal response has no approval link")
	}
	res.Success = true
	return res, nil
}

// ExecutePayment completes an approved payment. Any state other than
// "approved" is reported as an error.
func (c *PayPalClient) ExecutePayment(ctx context.Context, paymentID, payerID string) (*Result, error) {
	paymentID, payerID = strings.TrimSpace(paymentID), strings.TrimSpace(payerID)
	if paymentID == "" || payerID == "" {
		return nil, apperror.BadRequest("paymentId and payerId are required")
	}
	var p paypalPayment
	path := "/v1/payments/payment/" + url.PathEscape(paymentID) + "/execute"
	if err := c.postJSON(ctx, path, map[string]string{"payer_id": payerID}, &p); err != nil {
		return nil, err
	}
	if p.State != "approved" {
		return nil, apperror.Gateway(http.StatusPaymentRequired, "paypal payment not approved: "+firstNonEmpty(p.State, "unknown state"))
	}
	res := p.result()
	res.Success = true
	return res, nil
}
