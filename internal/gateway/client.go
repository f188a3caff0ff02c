package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/IkramBagban/proxlay-sub001/internal/config"
	"go.uber.org/zap"
)

type httpClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
	log       *zap.Logger
}

// NewHTTPClient builds the production gateway client. The gateway uses basic
// auth with the key pair issued per merchant account.
func NewHTTPClient(cfg config.Config, log *zap.Logger) Client {
	return &httpClient{
		baseURL:   strings.TrimRight(cfg.GatewayBaseURL, "/"),
		keyID:     cfg.GatewayKeyID,
		keySecret: cfg.GatewayKeySecret,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       log.Named("gateway.client"),
	}
}

func (c *httpClient) CreateSubscription(ctx context.Context, planID, userID string) (*Subscription, error) {
	body := map[string]any{
		"plan_id":         planID,
		"total_count":     12,
		"customer_notify": 1,
		"notes": map[string]string{
			"userId": userID,
		},
	}
	var sub Subscription
	if err := c.do(ctx, http.MethodPost, "/subscriptions", body, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *httpClient) FetchSubscription(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(id), nil, &sub); err != nil {
		return nil, err
	}
	if sub.ID == "" {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (c *httpClient) FetchPayment(ctx context.Context, id string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, &payment); err != nil {
		return nil, err
	}
	if payment.ID == "" {
		return nil, ErrPaymentNotFound
	}
	return &payment, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("gateway request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return ErrGatewayUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if strings.HasPrefix(path, "/payments/") {
			return ErrPaymentNotFound
		}
		return ErrSubscriptionNotFound
	case resp.StatusCode >= 500:
		return ErrGatewayUnavailable
	case resp.StatusCode >= 400:
		return fmt.Errorf("gateway request %s %s: status %d", method, path, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
