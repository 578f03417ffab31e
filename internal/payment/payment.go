// Package payment talks to the Stripe and PayPal REST APIs and
// reduces both to a single Result shape. Clients hold no state beyond
// an OAuth token cache and are built once at startup.
package payment

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/linkmarket/internal/apperror"
)

// Result is the provider-neutral outcome of a payment call.
type Result struct {
	Success      bool    `json:"success"`
	PaymentID    string  `json:"paymentId"`
	ClientSecret string  `json:"clientSecret,omitempty"`
	ApprovalURL  string  `json:"approvalUrl,omitempty"`
	Status       string  `json:"status,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	OrderID      string  `json:"orderId,omitempty"`
	UserID       string  `json:"userId,omitempty"`
}

const maxResponseBytes = 1 << 20

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to cents, rounding half
// away from zero.
func ToMinorUnits(amount float64) (int64, error) {
	d := decimal.NewFromFloat(amount)
	if !d.IsPositive() {
		return 0, apperror.BadRequest("amount must be greater than 0")
	}
	return d.Mul(hundred).Round(0).IntPart(), nil
}

// FromMinorUnits converts cents back to a major-unit amount.
func FromMinorUnits(minor int64) float64 {
	f, _ := decimal.New(minor, -2).Float64()
	return f
}

// formatAmount renders amount with two decimals as PayPal expects.
func formatAmount(amount float64) (string, error) {
	d := decimal.NewFromFloat(amount)
	if !d.IsPositive() {
		return "", apperror.BadRequest("amount must be greater than 0")
	}
	return d.StringFixed(2), nil
}

func notConfigured(provider string) *apperror.AppError {
	return &apperror.AppError{
		Code:    apperror.CodeGateway,
		Message: provider + " is not configured",
		Status:  http.StatusServiceUnavailable,
	}
}

// readJSON decodes a bounded response body into v.
func readJSON(resp *http.Response, v any) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return body, fmt.Errorf("decode response: %w", err)
		}
	}
	return body, nil
}

func transportErr(provider string, err error) *apperror.AppError {
	return &apperror.AppError{
		Code:    apperror.CodeGateway,
		Message: provider + " request failed",
		Details: err.Error(),
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func decimalFromString(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
