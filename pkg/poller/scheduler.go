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

// Package poller runs the adaptive site polling loop for one account.
package poller

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
)

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running          bool            `json:"running"`
	AdaptivePolling  bool            `json:"adaptive_polling"`
	Cadence          Cadence         `json:"cadence"`
	Interval         models.Duration `json:"interval"`
	LastTransitionAt *time.Time      `json:"last_transition_at,omitempty"`
	LastPollAt       *time.Time      `json:"last_poll_at,omitempty"`
	Sites            []string        `json:"sites,omitempty"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMeterProvider sets the meter provider for the poller instruments.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Scheduler) {
		if mp != nil {
			s.meterProvider = mp
		}
	}
}

// run is one Start..Stop lifetime of the loop.
type run struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Scheduler polls tracked sites, publishes each observation and speeds up
// after a security level transition.
type Scheduler struct {
	config        Config
	client        SiteClient
	publisher     Publisher
	clock         Clock
	logger        logger.Logger
	meterProvider metric.MeterProvider
	metrics       *instruments

	mu         sync.Mutex
	current    *run
	cadence    *cadenceController
	tracked    []string
	discovered []string
	lastPollAt time.Time
}

// NewScheduler validates cfg and returns a stopped scheduler.
func NewScheduler(cfg Config, client SiteClient, publisher Publisher, log logger.Logger, opts ...Option) (*Scheduler, error) {
	if client == nil {
		return nil, errSiteClientRequired
	}

	if publisher == nil {
		return nil, errPublisherRequired
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	s := &Scheduler{
		config:        cfg,
		client:        client,
		publisher:     publisher,
		clock:         realClock{},
		logger:        log,
		meterProvider: otel.GetMeterProvider(),
		cadence:       newCadenceController(cfg.Adaptive(), time.Duration(cfg.FastDuration)),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.metrics = newInstruments(s.meterProvider)

	return s, nil
}

// TrackSite adds a site to the polling set. Sites are polled in the order
// they were registered; duplicates are ignored.
func (s *Scheduler) TrackSite(siteID string) {
	if siteID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.tracked, siteID) {
		return
	}

	s.tracked = append(s.tracked, siteID)
}

// Start launches the polling loop and returns immediately. The first cycle
// runs right away on the loop goroutine. Start reports false when the loop is
// already running. The loop ends when ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()

	if s.current != nil {
		s.mu.Unlock()
		s.logger.Debug().Msg("Site polling already running")

		return false
	}

	r := &run{stop: make(chan struct{}), done: make(chan struct{})}
	s.current = r
	interval := s.intervalLocked()
	s.mu.Unlock()

	s.logger.Info().
		Dur("interval", interval).
		Bool("adaptive_polling", s.config.Adaptive()).
		Msg("Starting site polling")

	go s.loop(ctx, r, interval)

	return true
}

// Stop ends the polling loop and waits for an in-flight cycle to finish or
// for ctx to expire. Stop must not be called from a Publisher.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()

	if r == nil {
		return nil
	}

	r.stopOnce.Do(func() { close(r.stop) })

	select {
	case <-r.done:
		s.logger.Info().Msg("Site polling stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current != nil
}

// Cadence returns the currently selected cadence.
func (s *Scheduler) Cadence() Cadence {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cadence.cadence
}

// Interval returns the currently selected tick interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.intervalLocked()
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:         s.current != nil,
		AdaptivePolling: s.config.Adaptive(),
		Cadence:         s.cadence.cadence,
		Interval:        models.Duration(s.intervalLocked()),
	}

	if !s.cadence.lastTransitionAt.IsZero() {
		t := s.cadence.lastTransitionAt
		st.LastTransitionAt = &t
	}

	if !s.lastPollAt.IsZero() {
		t := s.lastPollAt
		st.LastPollAt = &t
	}

	switch {
	case s.config.SiteID != "":
		st.Sites = []string{s.config.SiteID}
	case len(s.tracked) > 0:
		st.Sites = append([]string(nil), s.tracked...)
	default:
		st.Sites = append([]string(nil), s.discovered...)
	}

	return st
}

func (s *Scheduler) intervalLocked() time.Duration {
	return s.cadence.interval(time.Duration(s.config.Interval), time.Duration(s.config.FastInterval))
}

func (s *Scheduler) loop(ctx context.Context, r *run, interval time.Duration) {
	ticker := s.clock.Ticker(interval)

	defer func() {
		ticker.Stop()

		s.mu.Lock()
		if s.current == r {
			s.current = nil
		}
		s.mu.Unlock()

		close(r.done)
	}()

	ticker = s.poll(ctx, ticker)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.Chan():
			ticker = s.poll(ctx, ticker)
		}
	}
}

// poll runs one cycle and returns the ticker that should drive the next one.
// Each site is fully reconciled and published before the next one is fetched.
func (s *Scheduler) poll(ctx context.Context, ticker Ticker) Ticker {
	s.mu.Lock()
	s.lastPollAt = s.clock.Now()
	cadence := s.cadence.cadence
	s.mu.Unlock()

	s.metrics.tick(ctx, cadence)

	observed := 0
	ids := s.targets()

	if ids == nil {
		for _, site := range s.discover(ctx) {
			if ctx.Err() != nil {
				return ticker
			}

			ticker = s.observe(ctx, ticker, site)
			observed++
		}
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return ticker
		}

		site, ok := s.fetchSite(ctx, id)
		if !ok {
			continue
		}

		ticker = s.observe(ctx, ticker, site)
		observed++
	}

	// With nothing observed the fast window still has to lapse.
	if observed == 0 {
		s.mu.Lock()
		switched := s.cadence.expire(s.clock.Now())
		s.mu.Unlock()

		if switched {
			ticker = s.restartTicker(ctx, ticker, "")
		}
	}

	return ticker
}

// targets returns the explicitly polled site ids in polling order, or nil
// when sites are discovered from the account listing.
func (s *Scheduler) targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.config.SiteID != "":
		return []string{s.config.SiteID}
	case len(s.tracked) > 0:
		return append([]string(nil), s.tracked...)
	default:
		return nil
	}
}

// fetchSite loads one site. Failures are logged and reported as not ok.
func (s *Scheduler) fetchSite(ctx context.Context, id string) (models.Site, bool) {
	site, err := s.client.GetSite(ctx, id)
	if err == nil && site == nil {
		err = errEmptySite
	}

	if err != nil {
		s.metrics.failure(ctx, "get_site")
		s.logger.Debug().Err(err).Str("site_id", id).Msg("Failed to poll site, will retry")

		return models.Site{}, false
	}

	if site.ID == "" {
		site.ID = id
	}

	return *site, true
}

// discover lists every site on the account. Sites keep the position in which
// they were first seen.
func (s *Scheduler) discover(ctx context.Context) []models.Site {
	listed, err := s.client.GetSites(ctx)
	if err != nil {
		s.metrics.failure(ctx, "get_sites")
		s.logger.Debug().Err(err).Msg("Failed to list sites, will retry")

		return nil
	}

	byID := make(map[string]models.Site, len(listed))

	s.mu.Lock()

	for _, site := range listed {
		if site.ID == "" {
			continue
		}

		if _, dup := byID[site.ID]; dup {
			continue
		}

		byID[site.ID] = site

		if !slices.Contains(s.discovered, site.ID) {
			s.discovered = append(s.discovered, site.ID)
		}
	}

	order := append([]string(nil), s.discovered...)
	s.mu.Unlock()

	sites := make([]models.Site, 0, len(byID))

	for _, id := range order {
		if site, found := byID[id]; found {
			sites = append(sites, site)
		}
	}

	return sites
}

func (s *Scheduler) observe(ctx context.Context, ticker Ticker, site models.Site) Ticker {
	s.mu.Lock()
	switched := s.cadence.observe(site.ID, site.SecurityLevel, s.clock.Now())
	s.mu.Unlock()

	if switched {
		ticker = s.restartTicker(ctx, ticker, site.ID)
	}

	s.publisher.Publish(site.ID, site.Clone())

	return ticker
}

func (s *Scheduler) restartTicker(ctx context.Context, ticker Ticker, siteID string) Ticker {
	s.mu.Lock()
	cadence := s.cadence.cadence
	interval := s.intervalLocked()
	s.mu.Unlock()

	ticker.Stop()

	s.metrics.cadenceSwitch(ctx, cadence)

	s.logger.Info().
		Str("cadence", string(cadence)).
		Dur("interval", interval).
		Str("site_id", siteID).
		Msg("Polling cadence changed")

	return s.clock.Ticker(interval)
}
