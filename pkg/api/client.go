/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api is a typed client for the remote site service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/version"
)

const (
	tracerName = "github.com/carverauto/alarmbridge/pkg/api"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = time.Second
)

// Config controls the transport behavior of a Client.
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	// RateLimit is the sustained request rate per second; zero disables throttling.
	RateLimit float64
	RateBurst int
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}

	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}

	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = DefaultRetryBaseDelay
	}

	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
}

// Client performs authenticated requests against the remote site service.
// Every operation retries 5xx responses and replayable transport failures,
// and replays once with a fresh token after a 401.
type Client struct {
	config     Config
	tokens     TokenSource
	httpClient HTTPClient
	limiter    *rate.Limiter
	logger     logger.Logger
	tracer     trace.Tracer
	metrics    *instruments
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient     HTTPClient
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}

// WithTracerProvider sets the provider used for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider sets the provider used for request metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *clientOptions) {
		o.meterProvider = mp
	}
}

// NewClient creates a Client for the service at cfg.BaseURL.
func NewClient(cfg Config, tokens TokenSource, log logger.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.applyDefaults()

	options := clientOptions{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.httpClient == nil {
		options.httpClient = &http.Client{}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &Client{
		config:     cfg,
		tokens:     tokens,
		httpClient: options.httpClient,
		limiter:    rate.NewLimiter(limit, cfg.RateBurst),
		logger:     log,
		tracer:     options.tracerProvider.Tracer(tracerName),
		metrics:    newInstruments(options.meterProvider),
	}, nil
}

type response struct {
	status int
	body   []byte
	token  string
}

// do runs one operation: encode, send with retry, handle 401, decode.
func (c *Client) do(ctx context.Context, operation, method, path string, in, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "api."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer span.End()

	start := time.Now()

	resp, err := c.roundTrip(ctx, operation, method, path, in)

	status := 0
	if resp != nil {
		status = resp.status
	}

	c.metrics.recordResult(ctx, operation, status, time.Since(start))

	if err == nil && status >= http.StatusBadRequest {
		err = newRemoteAPIError(status, resp.body)
	}

	if err == nil && out != nil && len(resp.body) > 0 {
		if decodeErr := json.Unmarshal(resp.body, out); decodeErr != nil {
			err = fmt.Errorf("%w: %s: %w", errDecodeResponse, operation, decodeErr)
		}
	}

	if status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return err
	}

	span.SetStatus(codes.Ok, "")

	return nil
}

// roundTrip sends the request under the retry policy and replays it once with
// a forced token refresh when the remote service answers 401.
func (c *Client) roundTrip(ctx context.Context, operation, method, path string, in interface{}) (*response, error) {
	var payload []byte

	if in != nil {
		var err error

		payload, err = json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errEncodeRequest, err)
		}
	}

	resp, err := c.sendWithRetry(ctx, operation, method, path, payload)
	if err != nil || resp.status != http.StatusUnauthorized {
		return resp, err
	}

	c.logger.Info().
		Str("operation", operation).
		Msg("Remote API rejected the access token, forcing a refresh")

	if _, err := c.tokens.ForceRefresh(ctx, resp.token); err != nil {
		return nil, err
	}

	return c.sendWithRetry(ctx, operation, method, path, payload)
}

func (c *Client) sendWithRetry(ctx context.Context, operation, method, path string, payload []byte) (*response, error) {
	attempt := 0

	op := func() (*response, error) {
		attempt++

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		token, err := c.tokens.GetAccessToken(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.send(ctx, method, path, payload, token)
		if err == nil {
			resp.token = token
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}

			netErr := &TransientNetworkError{Err: err}
			if !retryableTransportError(ctx, method, err) {
				return nil, backoff.Permanent(netErr)
			}

			return nil, netErr
		}

		if retryableStatus(resp.status) {
			return nil, &statusError{status: resp.status, body: resp.body}
		}

		return resp, nil
	}

	notify := func(err error, next time.Duration) {
		c.metrics.recordRetry(ctx, operation)

		c.logger.Debug().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("backoff", next).
			Msg("Remote API request failed, will retry")
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&linearBackOff{base: c.config.RetryBaseDelay}),
		backoff.WithMaxTries(uint(c.config.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return resp, nil
	}

	var se *statusError
	if errors.As(err, &se) {
		return &response{status: se.status, body: se.body}, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return nil, permanent.Unwrap()
	}

	return nil, err
}

// send performs a single attempt with its own timeout.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Request-ID", uuid.NewString())

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &response{status: resp.StatusCode, body: data}, nil
}
