package paypal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danielvasquez-dev/marketplace-billing/pkg/config"
	"github.com/danielvasquez-dev/marketplace-billing/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	apiVersion = "204.0"

	// Synthetic failure codes for transport-level outcomes the gateway never
	// reports itself. They participate in retry classification alongside the
	// gateway's own numeric codes.
	CodeTimeout     = "x-timeout"
	CodeServerError = "x-servererror"
)

var (
	errUsernameRequired  = errors.New("paypal api username is required")
	errPasswordRequired  = errors.New("paypal api password is required")
	errSignatureRequired = errors.New("paypal api signature is required")
	errInvalidPayPalEnv  = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired    = errors.New("paypal logger is required")
)

var endpoints = map[string]string{
	sandboxEnv:    "https://api-3t.sandbox.paypal.com/nvp",
	productionEnv: "https://api-3t.paypal.com/nvp",
}

// Error is a classified gateway failure carrying the NVP error code (or one of
// the synthetic transport codes).
type Error struct {
	Code        string
	Message     string
	LongMessage string
}

func (e *Error) Error() string {
	if e.LongMessage != "" {
		return fmt.Sprintf("paypal %s: %s", e.Code, e.LongMessage)
	}
	return fmt.Sprintf("paypal %s: %s", e.Code, e.Message)
}

// FailureCode returns the classifiable code for retry decisions.
func (e *Error) FailureCode() string {
	return e.Code
}

// ReferenceTransactionParams describes one charge against an existing billing
// agreement.
type ReferenceTransactionParams struct {
	ReceiverEmail      string
	BillingAgreementID string
	Total              decimal.Decimal
	Currency           string
	Name               string
	Description        string
	InvoiceNumber      string
}

// ReferenceTransactionResult carries the gateway fields merged into the
// payment record on success.
type ReferenceTransactionResult struct {
	PaymentID     string
	PaymentDate   time.Time
	Total         decimal.Decimal
	FeeTotal      decimal.Decimal
	Status        string
	PendingReason string
}

// Client wraps the PayPal Classic NVP API with centralized auth, logging, and
// error classification.
type Client struct {
	httpClient  *http.Client
	username    string
	password    string
	signature   string
	environment string
	endpoint    string
	logger      *logger.Logger
}

// NewClient initializes the NVP wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, errUsernameRequired
	}
	password := strings.TrimSpace(cfg.Password)
	if password == "" {
		return nil, errPasswordRequired
	}
	signature := strings.TrimSpace(cfg.Signature)
	if signature == "" {
		return nil, errSignatureRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		username:    username,
		password:    password,
		signature:   signature,
		environment: env,
		endpoint:    endpoints[env],
		logger:      logg,
	}

	logg.Info(ctx, "paypal client initialized")
	return c, nil
}

// Environment reports the normalized PayPal environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// DoReferenceTransaction charges the billing agreement referenced by params.
// Failures carry a classifiable code: the gateway's own L_ERRORCODE0, or a
// synthetic x-timeout / x-servererror for transport-level outcomes.
func (c *Client) DoReferenceTransaction(ctx context.Context, params ReferenceTransactionParams) (*ReferenceTransactionResult, error) {
	form := c.baseForm("DoReferenceTransaction")
	form.Set("REFERENCEID", params.BillingAgreementID)
	form.Set("PAYMENTACTION", "Sale")
	form.Set("AMT", params.Total.StringFixed(2))
	form.Set("CURRENCYCODE", params.Currency)
	form.Set("SUBJECT", params.ReceiverEmail)
	form.Set("DESC", params.Description)
	form.Set("INVNUM", params.InvoiceNumber)
	if params.Name != "" {
		form.Set("L_PAYMENTREQUEST_0_NAME0", params.Name)
	}

	c.log(ctx, "request", "do_reference_transaction", map[string]any{
		"billing_agreement_id": params.BillingAgreementID,
		"amount":               params.Total.StringFixed(2),
		"currency":             params.Currency,
		"invnum":               params.InvoiceNumber,
	})

	values, err := c.post(ctx, form)
	if err != nil {
		c.log(ctx, "error", "do_reference_transaction", map[string]any{"error": err.Error()})
		return nil, err
	}

	result, err := parseReferenceTransaction(values)
	if err != nil {
		c.log(ctx, "error", "do_reference_transaction", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "do_reference_transaction", map[string]any{
		"payment_id": result.PaymentID,
		"status":     result.Status,
	})
	return result, nil
}

func (c *Client) baseForm(method string) url.Values {
	form := url.Values{}
	form.Set("METHOD", method)
	form.Set("VERSION", apiVersion)
	form.Set("USER", c.username)
	form.Set("PWD", c.password)
	form.Set("SIGNATURE", c.signature)
	return form
}

func (c *Client) post(ctx context.Context, form url.Values) (url.Values, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building nvp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &Error{Code: CodeTimeout, Message: "gateway request timed out"}
		}
		return nil, &Error{Code: CodeServerError, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, &Error{Code: CodeServerError, Message: fmt.Sprintf("gateway returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: CodeServerError, Message: fmt.Sprintf("reading gateway response: %v", err)}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &Error{Code: CodeServerError, Message: fmt.Sprintf("parsing gateway response: %v", err)}
	}

	ack := values.Get("ACK")
	if ack != "Success" && ack != "SuccessWithWarning" {
		gwErr := &Error{
			Code:        values.Get("L_ERRORCODE0"),
			Message:     values.Get("L_SHORTMESSAGE0"),
			LongMessage: values.Get("L_LONGMESSAGE0"),
		}
		if gwErr.Code == "" {
			gwErr.Code = CodeServerError
			gwErr.Message = fmt.Sprintf("gateway returned ack %q without error code", ack)
		}
		return nil, gwErr
	}
	return values, nil
}

func parseReferenceTransaction(values url.Values) (*ReferenceTransactionResult, error) {
	paymentID := values.Get("TRANSACTIONID")
	if paymentID == "" {
		return nil, &Error{Code: CodeServerError, Message: "gateway response missing TRANSACTIONID"}
	}

	total, err := decimal.NewFromString(values.Get("AMT"))
	if err != nil {
		return nil, &Error{Code: CodeServerError, Message: fmt.Sprintf("invalid AMT %q", values.Get("AMT"))}
	}

	fee := decimal.Zero
	if raw := values.Get("FEEAMT"); raw != "" {
		fee, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, &Error{Code: CodeServerError, Message: fmt.Sprintf("invalid FEEAMT %q", raw)}
		}
	}

	paymentDate := time.Now().UTC()
	if raw := values.Get("ORDERTIME"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			paymentDate = parsed
		}
	}

	return &ReferenceTransactionResult{
		PaymentID:     paymentID,
		PaymentDate:   paymentDate,
		Total:         total,
		FeeTotal:      fee,
		Status:        values.Get("PAYMENTSTATUS"),
		PendingReason: values.Get("PENDINGREASON"),
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("paypal %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("paypal %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"password", "signature", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidPayPalEnv
	}
}
