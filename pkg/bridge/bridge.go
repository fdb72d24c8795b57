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

// Package bridge wires the credential store, token manager, remote client,
// polling scheduler and notification bus for a single account.
package bridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/alarmbridge/pkg/api"
	"github.com/carverauto/alarmbridge/pkg/auth"
	"github.com/carverauto/alarmbridge/pkg/credentials"
	"github.com/carverauto/alarmbridge/pkg/events"
	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
	"github.com/carverauto/alarmbridge/pkg/poller"
)

// Option configures a Bridge.
type Option func(*options)

type options struct {
	httpClient     *http.Client
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	clock          poller.Clock
}

// WithHTTPClient sets the client used for token exchanges and API requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithTracerProvider sets the provider for API request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider sets the provider for API and poller instruments.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithPollerClock replaces the clock driving the polling loop.
func WithPollerClock(clock poller.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// Bridge is the handle for one account. Bridges share no state, so several
// can run in one process.
type Bridge struct {
	config    Config
	logger    logger.Logger
	store     *credentials.FileStore
	tokens    *auth.Manager
	client    *api.Client
	scheduler *poller.Scheduler
	bus       *events.Bus

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New validates cfg and assembles a Bridge. Polling does not start until
// StartPolling is called. The polling loop outlives ctx and ends at Close, so
// an in-flight cycle is never cut short by the caller's cancellation.
func New(ctx context.Context, cfg Config, log logger.Logger, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	store, err := credentials.NewFileStore(cfg.StoragePath, logger.Component(log, "credentials"))
	if err != nil {
		return nil, err
	}

	exchanger := auth.NewOAuth2Exchanger(cfg.Account.authConfig(), o.httpClient)
	tokens := auth.NewManager(ctx, exchanger, store, logger.Component(log, "auth"),
		auth.WithDefaultScope(cfg.Account.Scope))

	clientOpts := []api.Option{
		api.WithTracerProvider(o.tracerProvider),
		api.WithMeterProvider(o.meterProvider),
	}

	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}

	client, err := api.NewClient(cfg.HTTP.clientConfig(cfg.Account.APIURL), tokens, logger.Component(log, "api"), clientOpts...)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus(logger.Component(log, "events"))

	schedulerOpts := []poller.Option{poller.WithMeterProvider(o.meterProvider)}
	if o.clock != nil {
		schedulerOpts = append(schedulerOpts, poller.WithClock(o.clock))
	}

	scheduler, err := poller.NewScheduler(cfg.Polling, client, bus, logger.Component(log, "poller"), schedulerOpts...)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		config:    cfg,
		logger:    log,
		store:     store,
		tokens:    tokens,
		client:    client,
		scheduler: scheduler,
		bus:       bus,
	}

	b.ctx, b.cancel = context.WithCancel(context.WithoutCancel(ctx))

	log.Info().
		Str("username", cfg.Account.Username).
		Str("api_url", cfg.Account.APIURL).
		Str("storage_path", store.Path()).
		Msg("Bridge initialized")

	return b, nil
}

// Config returns the validated configuration.
func (b *Bridge) Config() Config {
	return b.config
}

// Bus returns the notification bus, for attaching forwarders.
func (b *Bridge) Bus() *events.Bus {
	return b.bus
}

// GetAccessToken returns a valid bearer token.
func (b *Bridge) GetAccessToken(ctx context.Context) (string, error) {
	return b.tokens.GetAccessToken(ctx)
}

// CredentialState reports the cached credential state.
func (b *Bridge) CredentialState() auth.State {
	return b.tokens.State(time.Now())
}

// GetSites lists every site on the account.
func (b *Bridge) GetSites(ctx context.Context) ([]models.Site, error) {
	return b.client.GetSites(ctx)
}

// GetSite fetches one site.
func (b *Bridge) GetSite(ctx context.Context, siteID string) (*models.Site, error) {
	return b.client.GetSite(ctx, siteID)
}

// SetSecurityLevel requests a change of arming state. Errors are returned to
// the caller unchanged so an optimistic local update can be reverted.
func (b *Bridge) SetSecurityLevel(ctx context.Context, siteID string, level models.SecurityLevel) (*models.SecurityLevelResult, error) {
	return b.client.SetSecurityLevel(ctx, siteID, level)
}

// GetDevices lists the devices attached to a site.
func (b *Bridge) GetDevices(ctx context.Context, siteID string) ([]models.Device, error) {
	return b.client.GetDevices(ctx, siteID)
}

// Subscribe registers h for every polled site update.
func (b *Bridge) Subscribe(h events.Handler) *events.Subscription {
	return b.bus.Subscribe(h)
}

// Unsubscribe removes a subscription.
func (b *Bridge) Unsubscribe(sub *events.Subscription) bool {
	return b.bus.Unsubscribe(sub)
}

// TrackSite adds a site to the polling set.
func (b *Bridge) TrackSite(siteID string) {
	b.scheduler.TrackSite(siteID)
}

// StartPolling starts the polling loop. It reports false when the loop is
// already running.
func (b *Bridge) StartPolling() bool {
	return b.scheduler.Start(b.ctx)
}

// StopPolling stops the polling loop, waiting for an in-flight cycle.
func (b *Bridge) StopPolling(ctx context.Context) error {
	return b.scheduler.Stop(ctx)
}

// PollingStatus reports the scheduler state.
func (b *Bridge) PollingStatus() poller.Status {
	return b.scheduler.Status()
}

// ClearCredential forgets the cached credential in memory and on disk. The
// next request performs a fresh password grant.
func (b *Bridge) ClearCredential(ctx context.Context) error {
	if err := b.tokens.ClearToken(ctx); err != nil {
		return err
	}

	b.logger.Info().Msg("Credential cleared")

	return nil
}

// Close stops polling and drops every subscription. It is safe to call more
// than once.
func (b *Bridge) Close(ctx context.Context) error {
	var err error

	b.closeOnce.Do(func() {
		err = b.scheduler.Stop(ctx)
		b.bus.Close()
		b.cancel()
	})

	return err
}
