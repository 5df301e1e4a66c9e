package pawapay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loumoapp/loumo-backend/pkg/enums"
	pkgerrors "github.com/loumoapp/loumo-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.sandbox.pawapay.io/v2"
	responseBodyReadLimit int64 = 1024
)

var errAPITokenRequired = errors.New("pawapay api token is required")

// Provider status vocabulary. The ack statuses come back synchronously on
// deposit creation, the rest only ever appear on status checks.
const (
	ProviderStatusAccepted         = "ACCEPTED"
	ProviderStatusRejected         = "REJECTED"
	ProviderStatusEnqueued         = "ENQUEUED"
	ProviderStatusSubmitted        = "SUBMITTED"
	ProviderStatusProcessing       = "PROCESSING"
	ProviderStatusInReconciliation = "IN_RECONCILIATION"
	ProviderStatusCompleted        = "COMPLETED"
	ProviderStatusFailed           = "FAILED"
)

// Client wraps the pawaPay deposits API used for mobile-money collection.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured pawaPay base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the pawaPay client given an API token.
func NewClient(apiToken string, opts ...Option) (*Client, error) {
	trimmedToken := strings.TrimSpace(apiToken)
	if trimmedToken == "" {
		return nil, errAPITokenRequired
	}

	client := &Client{
		apiToken:   trimmedToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// AccountDetails identifies the mobile-money wallet charged by a deposit.
type AccountDetails struct {
	PhoneNumber string `json:"phoneNumber"`
	Provider    string `json:"provider"`
}

// Payer is the wallet holder a deposit is requested from.
type Payer struct {
	Type           string         `json:"type"`
	AccountDetails AccountDetails `json:"accountDetails"`
}

// DepositRequest is the payload sent to initiate a deposit.
type DepositRequest struct {
	DepositID         string `json:"depositId"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Country           string `json:"country"`
	Payer             Payer  `json:"payer"`
	ClientReferenceID string `json:"clientReferenceId,omitempty"`
	CustomerMessage   string `json:"customerMessage,omitempty"`
}

// FailureReason carries the provider's rejection or failure detail.
type FailureReason struct {
	FailureCode    string `json:"failureCode"`
	FailureMessage string `json:"failureMessage"`
}

// DepositAck is the synchronous reply to a deposit request. The provider only
// ever answers ACCEPTED or REJECTED here, settlement arrives via status checks.
type DepositAck struct {
	DepositID     string         `json:"depositId"`
	Status        string         `json:"status"`
	FailureReason *FailureReason `json:"failureReason,omitempty"`
}

// Accepted reports whether the provider took the deposit for processing.
func (a DepositAck) Accepted() bool {
	return a.Status == ProviderStatusAccepted
}

// DepositState is the provider-side view of a deposit returned by status checks.
type DepositState struct {
	DepositID             string         `json:"depositId"`
	Status                string         `json:"status"`
	Amount                string         `json:"amount"`
	Currency              string         `json:"currency"`
	ProviderTransactionID *string        `json:"providerTransactionId,omitempty"`
	FailureReason         *FailureReason `json:"failureReason,omitempty"`
}

// RequestDeposit initiates a deposit. Transport and server failures come back
// as gateway errors, a REJECTED ack is a successful call with Accepted()==false.
func (c *Client) RequestDeposit(ctx context.Context, req DepositRequest) (*DepositAck, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "pawapay client not configured")
	}
	if strings.TrimSpace(req.DepositID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit ID is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "marshal deposit request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("deposits"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build deposit request")
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute deposit request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, readErrorStatus(resp, "deposit request failed")
	}

	var ack DepositAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode deposit response")
	}

	return &ack, nil
}

// CheckDepositStatus fetches the provider-side state of a deposit. This is the
// only way to learn of settlement.
func (c *Client) CheckDepositStatus(ctx context.Context, depositID string) (*DepositState, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "pawapay client not configured")
	}
	trimmed := strings.TrimSpace(depositID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit ID is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL("deposits/"+url.PathEscape(trimmed)), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build status request")
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute status request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, readErrorStatus(resp, "status request failed")
	}

	var apiResp struct {
		Status string        `json:"status"`
		Data   *DepositState `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode status response")
	}
	if apiResp.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, fmt.Sprintf("deposit %s not found at provider", trimmed))
	}

	return apiResp.Data, nil
}

// CancelDeposit cancels a deposit; the provider only honors this while the
// deposit is still ENQUEUED.
func (c *Client) CancelDeposit(ctx context.Context, depositID string) error {
	return c.postDepositAction(ctx, depositID, "cancel")
}

// ResendCallback asks the provider to redeliver the final deposit callback.
func (c *Client) ResendCallback(ctx context.Context, depositID string) error {
	return c.postDepositAction(ctx, depositID, "resend-callback")
}

func (c *Client) postDepositAction(ctx context.Context, depositID, action string) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeGateway, "pawapay client not configured")
	}
	trimmed := strings.TrimSpace(depositID)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "deposit ID is required")
	}

	path := fmt.Sprintf("deposits/%s/%s", url.PathEscape(trimmed), action)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "build "+action+" request")
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "execute "+action+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return readErrorStatus(resp, action+" request failed")
	}

	return nil
}

// MapProviderStatus translates the provider status vocabulary into the local
// payment status. Unrecognized statuses report ok==false and mean "no change".
func MapProviderStatus(providerStatus string) (status enums.PaymentStatus, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(providerStatus)) {
	case ProviderStatusAccepted:
		return enums.PaymentStatusAccepted, true
	case ProviderStatusEnqueued, ProviderStatusSubmitted, ProviderStatusProcessing, ProviderStatusInReconciliation:
		return enums.PaymentStatusProcessing, true
	case ProviderStatusCompleted:
		return enums.PaymentStatusCompleted, true
	case ProviderStatusFailed:
		return enums.PaymentStatusFailed, true
	case ProviderStatusRejected:
		return enums.PaymentStatusRejected, true
	}
	return "", false
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

func readErrorStatus(resp *http.Response, msg string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	return pkgerrors.Wrap(pkgerrors.CodeGateway,
		fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), msg)
}
