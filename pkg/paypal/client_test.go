package paypal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/config"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
)

func testConfig() config.PayPalConfig {
	return config.PayPalConfig{
		Username:       "api-user",
		Password:       "api-pass",
		Signature:      "api-sig",
		Env:            "sandbox",
		RequestTimeout: time.Second,
		Currency:       "USD",
	}
}

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	c, err := NewClient(context.Background(), testConfig(), logg)
	require.NoError(t, err)
	c.endpoint = endpoint
	return c
}

func sampleParams() ReferenceTransactionParams {
	return ReferenceTransactionParams{
		ReceiverEmail:      "admin@example.com",
		BillingAgreementID: "B-1234567890",
		Total:              decimal.RequireFromString("12.50"),
		Currency:           "USD",
		Name:               "Commission",
		Description:        "Marketplace commission",
		InvoiceNumber:      "7-99-commission",
	}
}

func TestNewClientValidatesCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})

	cfg := testConfig()
	cfg.Username = ""
	_, err := NewClient(context.Background(), cfg, logg)
	require.ErrorIs(t, err, errUsernameRequired)

	cfg = testConfig()
	cfg.Env = "staging"
	_, err = NewClient(context.Background(), cfg, logg)
	require.ErrorIs(t, err, errInvalidPayPalEnv)

	_, err = NewClient(context.Background(), testConfig(), nil)
	require.ErrorIs(t, err, errLoggerRequired)
}

func TestDoReferenceTransactionSuccess(t *testing.T) {
	var captured url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured = r.PostForm

		resp := url.Values{}
		resp.Set("ACK", "Success")
		resp.Set("TRANSACTIONID", "TX-1")
		resp.Set("AMT", "12.50")
		resp.Set("FEEAMT", "0.66")
		resp.Set("ORDERTIME", "2026-03-01T12:00:00Z")
		resp.Set("PAYMENTSTATUS", "Completed")
		w.Write([]byte(resp.Encode()))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	result, err := c.DoReferenceTransaction(context.Background(), sampleParams())
	require.NoError(t, err)

	require.Equal(t, "TX-1", result.PaymentID)
	require.True(t, result.Total.Equal(decimal.RequireFromString("12.50")))
	require.True(t, result.FeeTotal.Equal(decimal.RequireFromString("0.66")))
	require.Equal(t, "Completed", result.Status)
	require.Empty(t, result.PendingReason)
	require.Equal(t, "2026-03-01T12:00:00Z", result.PaymentDate.Format(time.RFC3339))

	require.Equal(t, "DoReferenceTransaction", captured.Get("METHOD"))
	require.Equal(t, "B-1234567890", captured.Get("REFERENCEID"))
	require.Equal(t, "12.50", captured.Get("AMT"))
	require.Equal(t, "7-99-commission", captured.Get("INVNUM"))
	require.Equal(t, "Sale", captured.Get("PAYMENTACTION"))
}

func TestDoReferenceTransactionGatewayFailureCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := url.Values{}
		resp.Set("ACK", "Failure")
		resp.Set("L_ERRORCODE0", "10001")
		resp.Set("L_SHORTMESSAGE0", "Internal Error")
		resp.Set("L_LONGMESSAGE0", "Timeout processing request")
		w.Write([]byte(resp.Encode()))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	_, err := c.DoReferenceTransaction(context.Background(), sampleParams())

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, "10001", gwErr.FailureCode())
	require.Contains(t, gwErr.Error(), "Timeout processing request")
}

func TestDoReferenceTransactionServerErrorIsSynthetic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	_, err := c.DoReferenceTransaction(context.Background(), sampleParams())

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, CodeServerError, gwErr.FailureCode())
}

func TestDoReferenceTransactionTimeoutIsSynthetic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	c.httpClient.Timeout = 50 * time.Millisecond

	_, err := c.DoReferenceTransaction(context.Background(), sampleParams())

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, CodeTimeout, gwErr.FailureCode())
}

func TestDoReferenceTransactionMissingTransactionID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := url.Values{}
		resp.Set("ACK", "Success")
		w.Write([]byte(resp.Encode()))
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	_, err := c.DoReferenceTransaction(context.Background(), sampleParams())

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	require.Equal(t, CodeServerError, gwErr.FailureCode())
}
