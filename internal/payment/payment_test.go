package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/linkmarket/internal/apperror"
)

func TestToMinorUnits(t *testing.T) {
	cases := map[float64]int64{50: 5000, 19.99: 1999, 0.1 + 0.2: 30, 10.005: 1001, 1234.5: 123450}
	for in, want := range cases {
		got, err := ToMinorUnits(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "amount %v", in)
	}
	for _, bad := range []float64{0, -1} {
		_, err := ToMinorUnits(bad)
		assert.Equal(t, 400, apperror.StatusOf(err))
	}
	assert.Equal(t, 19.99, FromMinorUnits(1999))
}

func newStripe(t *testing.T, h http.HandlerFunc) *StripeClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewStripeClient(StripeConfig{SecretKey: "sk_test_123", APIBase: srv.URL})
}

func TestStripeCreatePaymentIntent(t *testing.T) {
	c := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "5000", r.PostForm.Get("amount"))
		assert.Equal(t, "usd", r.PostForm.Get("currency"))
		assert.Equal(t, "u-1", r.PostForm.Get("metadata[userId]"))
		assert.Equal(t, "o-1", r.PostForm.Get("metadata[orderId]"))
		_, _ = io.WriteString(w, `{"id":"pi_1","client_secret":"pi_1_secret","status":"requires_payment_method","amount":5000,"currency":"usd","metadata":{"orderId":"o-1","userId":"u-1"}}`)
	})

	res, err := c.CreatePaymentIntent(context.Background(), IntentRequest{Amount: 50, UserID: "u-1", OrderID: "o-1"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "pi_1", res.PaymentID)
	assert.Equal(t, "pi_1_secret", res.ClientSecret)
	assert.Equal(t, 50.0, res.Amount)
	assert.Equal(t, "o-1", res.OrderID)
}

func TestStripeVerifyPayment(t *testing.T) {
	var status atomic.Value
	status.Store("succeeded")
	c := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "pi_1", "status": status.Load(), "amount": 1999, "metadata": map[string]string{"orderId": "o-9"},
		})
	})

	res, err := c.VerifyPayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "o-9", res.OrderID)
	assert.Equal(t, 19.99, res.Amount)

	status.Store("processing")
	res, err = c.VerifyPayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.False(t, res.Success)

	_, err = c.VerifyPayment(context.Background(), " ")
	assert.Equal(t, 400, apperror.StatusOf(err))
}

func TestStripeErrorsPassThrough(t *testing.T) {
	c := newStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = io.WriteString(w, `{"error":{"type":"card_error","message":"Your card was declined."}}`)
	})

	_, err := c.CreatePaymentIntent(context.Background(), IntentRequest{Amount: 10})
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusPaymentRequired, ae.Status)
	assert.Equal(t, "Your card was declined.", ae.Message)
	assert.Equal(t, apperror.CodeGateway, ae.Code)
}

func TestStripeNotConfigured(t *testing.T) {
	c := NewStripeClient(StripeConfig{})
	assert.False(t, c.Configured())
	_, err := c.VerifyPayment(context.Background(), "pi_1")
	assert.Equal(t, http.StatusServiceUnavailable, apperror.StatusOf(err))
}

type fakePayPal struct {
	tokenCalls atomic.Int32
	tokenCode  int
	tokenBody  string
	state      string
}

func (f *fakePayPal) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			f.tokenCalls.Add(1)
			id, secret, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "client", id)
			assert.Equal(t, "secret", secret)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			if f.tokenCode != 0 {
				w.WriteHeader(f.tokenCode)
				_, _ = io.WriteString(w, f.tokenBody)
				return
			}
			_, _ = io.WriteString(w, `{"access_token":"A21","expires_in":32400}`)
		case "/v1/payments/payment":
			assert.Equal(t, "Bearer A21", r.Header.Get("Authorization"))
			var body struct {
				RedirectURLs map[string]string   `json:"redirect_urls"`
				Transactions []paypalTransaction `json:"transactions"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://app.example.com/ok", body.RedirectURLs["return_url"])
			if assert.Len(t, body.Transactions, 1) {
				assert.Equal(t, "50.00", body.Transactions[0].Amount.Total)
				assert.Equal(t, "USD", body.Transactions[0].Amount.Currency)
			}
			_, _ = io.WriteString(w, `{"id":"PAY-1","state":"created","transactions":[{"amount":{"total":"50.00","currency":"USD"},"custom":"o-1"}],
				"links":[{"href":"https://paypal.example/self","rel":"self"},{"href":"https://paypal.example/approve?token=EC-1","rel":"approval_url"}]}`)
		case "/v1/payments/payment/PAY-1/execute":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "PAYER-1", body["payer_id"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "PAY-1", "state": f.state,
				"transactions": []map[string]any{{"amount": map[string]string{"total": "50.00", "currency": "USD"}, "custom": "o-1"}},
			})
		default:
			http.NotFound(w, r)
		}
	}
}

func newPayPal(t *testing.T, f *fakePayPal) *PayPalClient {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewPayPalClient(PayPalConfig{
		ClientID: "client", ClientSecret: "secret", APIBase: srv.URL,
		ReturnURL: "https://app.example.com/ok", CancelURL: "https://app.example.com/cancel",
	})
}

func TestPayPalCreateAndExecute(t *testing.T) {
	f := &fakePayPal{state: "approved"}
	c := newPayPal(t, f)
	ctx := context.Background()

	res, err := c.CreatePayment(ctx, PaymentRequest{Amount: 50, OrderID: "o-1"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "PAY-1", res.PaymentID)
	u, err := url.Parse(res.ApprovalURL)
	require.NoError(t, err)
	assert.Equal(t, "EC-1", u.Query().Get("token"))

	done, err := c.ExecutePayment(ctx, "PAY-1", "PAYER-1")
	require.NoError(t, err)
	assert.True(t, done.Success)
	assert.Equal(t, "o-1", done.OrderID)
	assert.Equal(t, 50.0, done.Amount)

	assert.Equal(t, int32(1), f.tokenCalls.Load(), "token is cached between calls")
}

func TestPayPalExecuteRequiresApprovedState(t *testing.T) {
	c := newPayPal(t, &fakePayPal{state: "failed"})

	_, err := c.ExecutePayment(context.Background(), "PAY-1", "PAYER-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusPaymentRequired, apperror.StatusOf(err))

	_, err = c.ExecutePayment(context.Background(), "PAY-1", "")
	assert.Equal(t, 400, apperror.StatusOf(err))
}

func TestPayPalCredentialErrors(t *testing.T) {
	cases := map[string]*fakePayPal{
		"http 401":       {tokenCode: http.StatusUnauthorized, tokenBody: `{"error":"invalid_client","error_description":"Client Authentication failed"}`},
		"invalid_client": {tokenCode: http.StatusBadRequest, tokenBody: `{"error":"invalid_client"}`},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			c := newPayPal(t, f)
			_, err := c.CreatePayment(context.Background(), PaymentRequest{Amount: 50})
			ae, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodePayPalCredentials, ae.Code)
			assert.Contains(t, ae.Message, "PAYPAL_CLIENT_ID")
		})
	}
}

func TestPayPalOtherErrorsPassThrough(t *testing.T) {
	f := &fakePayPal{tokenCode: http.StatusServiceUnavailable, tokenBody: `{"name":"SERVICE_UNAVAILABLE","message":"try later"}`}
	c := newPayPal(t, f)

	_, err := c.CreatePayment(context.Background(), PaymentRequest{Amount: 50})
	ae, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeGateway, ae.Code)
	assert.Equal(t, http.StatusServiceUnavailable, ae.Status)
	assert.Equal(t, "try later", ae.Message)
}

func TestPayPalNotConfigured(t *testing.T) {
	c := NewPayPalClient(PayPalConfig{})
	_, err := c.CreatePayment(context.Background(), PaymentRequest{Amount: 1})
	assert.Equal(t, http.StatusServiceUnavailable, apperror.StatusOf(err))
}
