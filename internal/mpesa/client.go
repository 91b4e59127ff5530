package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"coreshare-backend/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"

	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// CallbackPath is where the gateway posts STK results, relative to the configured callback base URL.
	CallbackPath = "/api/callback/payment"

	timestampLayout     = "20060102150405"
	transactionType     = "CustomerPayBillOnline"
	tokenRefreshMargin  = time.Minute
	defaultTokenTTL     = time.Hour
	defaultTimeout      = 30 * time.Second
	resultCodeCancelled = 1032
)

type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	// CallbackBaseURL is the public base URL of this service; CallbackPath is appended to it.
	CallbackBaseURL string
	// Environment is "sandbox" or "production". BaseURL, when set, overrides both.
	Environment string
	BaseURL     string
	TestMode    bool
	Timeout     time.Duration
}

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomePending   Outcome = "pending"
)

func outcomeForResultCode(code int) Outcome {
	switch code {
	case 0:
		return OutcomeSucceeded
	case resultCodeCancelled:
		return OutcomeCancelled
	default:
		return OutcomeFailed
	}
}

type PushRequest struct {
	PhoneNumber      string
	Amount           float64
	AccountReference string
	Description      string
}

type PushResponse struct {
	MerchantRequestID string
	CheckoutRequestID string
	CustomerMessage   string
	// PhoneNumber is the normalised number the push was sent to.
	PhoneNumber string
	// Amount is the whole-unit amount the customer was asked to pay.
	Amount float64
	Raw    json.RawMessage
}

type StatusResult struct {
	CheckoutRequestID string
	Outcome           Outcome
	ResultCode        string
	ResultDescription string
	Raw               json.RawMessage
}

// Client talks to the Daraja STK push API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SandboxBaseURL
		if strings.EqualFold(cfg.Environment, "production") {
			baseURL = ProductionBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

func (c *Client) TestMode() bool {
	return c.cfg.TestMode
}

// AccessToken returns a cached OAuth token, refreshing it shortly before it expires.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c.cfg.TestMode {
		return "test-access-token", nil
	}
	if c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" {
		return "", ErrMissingCredentials
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	logger.ExternalServiceCall("mpesa", "oauth")
	err = c.do(req, &resp)
	logger.ExternalServiceResult("mpesa", "oauth", err)
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrUnavailable)
	}

	ttl := defaultTokenTTL
	if secs, err := strconv.Atoi(resp.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	c.token = resp.AccessToken
	c.tokenExpiry = c.now().Add(ttl - tokenRefreshMargin)
	return c.token, nil
}

// InitiatePush sends an STK push prompt to the customer's phone.
func (c *Client) InitiatePush(ctx context.Context, in PushRequest) (*PushResponse, error) {
	phone, err := NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if in.Amount < 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidAmount, in.Amount)
	}
	amount := decimal.NewFromFloat(in.Amount).Ceil().IntPart()

	if c.cfg.TestMode {
		checkoutID := "ws_CO_" + uuid.NewString()
		logger.Info("M-Pesa test mode push", "checkoutRequestID", checkoutID, "phone", phone, "amount", amount)
		raw, _ := json.Marshal(map[string]string{"CheckoutRequestID": checkoutID, "ResponseCode": "0", "TestMode": "true"})
		return &PushResponse{
			MerchantRequestID: "test-" + uuid.NewString(),
			CheckoutRequestID: checkoutID,
			CustomerMessage:   "Success. Request accepted for processing",
			PhoneNumber:       phone,
			Amount:            float64(amount),
			Raw:               raw,
		}, nil
	}
	if c.cfg.ShortCode == "" || c.cfg.PassKey == "" {
		return nil, ErrMissingCredentials
	}

	timestamp := c.now().Format(timestampLayout)
	body := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   transactionType,
		"Amount":            amount,
		"PartyA":            phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       phone,
		"CallBackURL":       strings.TrimRight(c.cfg.CallbackBaseURL, "/") + CallbackPath,
		"AccountReference":  truncate(in.AccountReference, 12),
		"TransactionDesc":   truncate(in.Description, 13),
	}

	var resp struct {
		MerchantRequestID   string `json:"MerchantRequestID"`
		CheckoutRequestID   string `json:"CheckoutRequestID"`
		ResponseCode        string `json:"ResponseCode"`
		ResponseDescription string `json:"ResponseDescription"`
		CustomerMessage     string `json:"CustomerMessage"`
	}
	logger.ExternalServiceCall("mpesa", "stkpush", "phone", phone, "amount", amount)
	raw, err := c.postJSON(ctx, stkPushPath, body, &resp)
	logger.ExternalServiceResult("mpesa", "stkpush", err, "checkoutRequestID", resp.CheckoutRequestID)
	if err != nil {
		return nil, err
	}
	if resp.ResponseCode != "0" || resp.CheckoutRequestID == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Code: resp.ResponseCode, Message: resp.ResponseDescription}
	}
	return &PushResponse{
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		CustomerMessage:   resp.CustomerMessage,
		PhoneNumber:       phone,
		Amount:            float64(amount),
		Raw:               raw,
	}, nil
}

// CheckStatus queries the result of an STK push. A transaction the customer has not answered
// yet reports OutcomePending rather than an error.
func (c *Client) CheckStatus(ctx context.Context, checkoutRequestID string) (*StatusResult, error) {
	if c.cfg.TestMode {
		return &StatusResult{
			CheckoutRequestID: checkoutRequestID,
			Outcome:           OutcomeSucceeded,
			ResultCode:        "0",
			ResultDescription: "The service request is processed successfully.",
		}, nil
	}
	if c.cfg.ShortCode == "" || c.cfg.PassKey == "" {
		return nil, ErrMissingCredentials
	}

	timestamp := c.now().Format(timestampLayout)
	body := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	var resp struct {
		ResponseCode string      `json:"ResponseCode"`
		ResultCode   json.Number `json:"ResultCode"`
		ResultDesc   string      `json:"ResultDesc"`
	}
	logger.ExternalServiceCall("mpesa", "stkquery", "checkoutRequestID", checkoutRequestID)
	raw, err := c.postJSON(ctx, stkQueryPath, body, &resp)
	logger.ExternalServiceResult("mpesa", "stkquery", err, "checkoutRequestID", checkoutRequestID)
	if IsProcessing(err) {
		var apiErr *APIError
		errors.As(err, &apiErr)
		return &StatusResult{
			CheckoutRequestID: checkoutRequestID,
			Outcome:           OutcomePending,
			ResultCode:        apiErr.Code,
			ResultDescription: apiErr.Message,
			Raw:               raw,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	code, convErr := resp.ResultCode.Int64()
	if convErr != nil {
		return nil, fmt.Errorf("%w: unreadable result code %q", ErrUnavailable, resp.ResultCode)
	}
	return &StatusResult{
		CheckoutRequestID: checkoutRequestID,
		Outcome:           outcomeForResultCode(int(code)),
		ResultCode:        resp.ResultCode.String(),
		ResultDescription: resp.ResultDesc,
		Raw:               raw,
	}, nil
}

func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.PassKey + timestamp))
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) (json.RawMessage, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		return raw, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return raw, fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}
	return raw, nil
}

// do executes req and decodes a 2xx JSON body into out. Error bodies become *APIError.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			RequestID    string `json:"requestId"`
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		if json.Unmarshal(respBody, &body) == nil && body.ErrorCode != "" {
			if raw, ok := out.(*json.RawMessage); ok {
				*raw = append((*raw)[:0], respBody...)
			}
			return &APIError{StatusCode: resp.StatusCode, RequestID: body.RequestID, Code: body.ErrorCode, Message: body.ErrorMessage}
		}
		if resp.StatusCode == http.StatusGatewayTimeout {
			return ErrTimeout
		}
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, truncate(string(respBody), 200))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
