// Package client implements the HTTP transport to the exchange gateway. The
// exchange is an opaque counterparty: one POST of a message bundle, one
// synchronous bundle (or OperationOutcome) back.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hayat-his/hcx-app/conf"
	"github.com/hayat-his/hcx-app/hcx/errors"
	"github.com/hayat-his/hcx-app/hcx/fhir"
	"github.com/hayat-his/hcx-app/log"
)

// ExchangeClient sends one outbound envelope and returns the synchronous
// reply. Implementations must not retry: a submission POST is not idempotent
// and a duplicate send creates a duplicate claim on the counterparty side.
type ExchangeClient interface {
	Send(ctx context.Context, bundle *fhir.Bundle) (*fhir.Bundle, error)
}

type Config struct {
	ExchangeURL string `conf:"HCX_EXCHANGE_URL"`
	TimeoutMS   int    `conf:"HCX_EXCHANGE_TIMEOUT_MS" conf_default:"30000"`

	// RetryMax stays 0 unless the gateway deploys dedup on its edge.
	RetryMax int `conf:"HCX_EXCHANGE_RETRY_MAX" conf_default:"0"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := conf.Checkout(cfg); err != nil {
		return nil, err
	}
	if cfg.ExchangeURL == "" {
		return nil, fmt.Errorf("invalid config, ExchangeURL must be set")
	}
	return cfg, nil
}

type HTTPExchangeClient struct {
	client *retryablehttp.Client
	url    string
	logger logrus.FieldLogger
}

var _ ExchangeClient = &HTTPExchangeClient{}

func NewExchangeClient(cfg *Config) *HTTPExchangeClient {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.Logger = nil
	client.HTTPClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond

	return &HTTPExchangeClient{
		client: client,
		url:    cfg.ExchangeURL,
		logger: log.Exchange,
	}
}

// Send POSTs the envelope and decodes the synchronous reply. A transport
// failure (refused, timed out, connection dropped mid-body) comes back as a
// TransportError: the caller cannot know whether the exchange received the
// message. A readable HTTP error or an OperationOutcome reply comes back as a
// RemoteRejectionError: the exchange received and refused it.
func (c *HTTPExchangeClient) Send(ctx context.Context, bundle *fhir.Bundle) (*fhir.Bundle, error) {
	body, err := json.Marshal(bundle)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequest("POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/fhir+json")
	req.Header.Set("Accept", "application/fhir+json")
	reqID := uuid.NewRandom().String()
	req.Header.Set("X-Request-ID", reqID)

	logger := c.logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"bundle_id":  bundle.ID,
	})
	logger.Info("exchange request")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer func() {
			_, _ = io.Copy(ioutil.Discard, resp.Body)
			resp.Body.Close()
		}()
	}
	if err != nil {
		logger.WithError(err).Error("exchange transport failure")
		return nil, &errors.TransportError{Err: err}
	}

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		logger.WithError(err).Error("exchange transport failure reading body")
		return nil, &errors.TransportError{Err: err}
	}

	logger.WithFields(logrus.Fields{
		"resp_code":      resp.StatusCode,
		"content_length": len(respBody),
	}).Info("exchange response")

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, rejectionError(resp.StatusCode, respBody)
	}

	var reply fhir.Bundle
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, &errors.ParseError{Err: err, Raw: respBody}
	}

	// Some gateway errors come back 200 with a bare OperationOutcome.
	if reply.ResourceType == fhir.ResourceTypeOperationOutcome {
		return nil, rejectionError(resp.StatusCode, respBody)
	}

	return &reply, nil
}

func rejectionError(statusCode int, body []byte) *errors.RemoteRejectionError {
	rejection := &errors.RemoteRejectionError{
		StatusCode: statusCode,
		Message:    string(body),
	}

	var outcome fhir.OperationOutcome
	if err := json.Unmarshal(body, &outcome); err == nil && len(outcome.Issue) > 0 {
		issue := outcome.Issue[0]
		rejection.Code = issue.Code
		if issue.Diagnostics != "" {
			rejection.Message = issue.Diagnostics
		}
	}

	return rejection
}
