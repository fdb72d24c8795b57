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

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
)

const waitTimeout = 2 * time.Second

var errUnavailable = errors.New("service unavailable")

type tickerRecord struct {
	interval time.Duration
	ch       chan time.Time
	stopped  bool
}

// timeline drives a MockClock: Now returns a settable instant and every
// Ticker call is recorded so tests can fire the most recent one.
type timeline struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*tickerRecord
}

func newTimeline(ctrl *gomock.Controller, start time.Time) (*MockClock, *timeline) {
	tl := &timeline{now: start}
	clock := NewMockClock(ctrl)

	clock.EXPECT().Now().DoAndReturn(func() time.Time {
		tl.mu.Lock()
		defer tl.mu.Unlock()

		return tl.now
	}).AnyTimes()

	clock.EXPECT().Ticker(gomock.Any()).DoAndReturn(func(d time.Duration) Ticker {
		rec := &tickerRecord{interval: d, ch: make(chan time.Time)}

		ticker := NewMockTicker(ctrl)
		ticker.EXPECT().Chan().Return((<-chan time.Time)(rec.ch)).AnyTimes()
		ticker.EXPECT().Stop().Do(func() {
			tl.mu.Lock()
			rec.stopped = true
			tl.mu.Unlock()
		}).AnyTimes()

		tl.mu.Lock()
		tl.tickers = append(tl.tickers, rec)
		tl.mu.Unlock()

		return ticker
	}).AnyTimes()

	return clock, tl
}

func (tl *timeline) fire(t *testing.T, at time.Time) {
	t.Helper()

	tl.mu.Lock()
	tl.now = at
	require.NotEmpty(t, tl.tickers)
	rec := tl.tickers[len(tl.tickers)-1]
	tl.mu.Unlock()

	select {
	case rec.ch <- at:
	case <-time.After(waitTimeout):
		t.Fatal("polling loop did not accept tick")
	}
}

func (tl *timeline) intervals() []time.Duration {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	out := make([]time.Duration, 0, len(tl.tickers))
	for _, rec := range tl.tickers {
		out = append(out, rec.interval)
	}

	return out
}

func (tl *timeline) stopped(i int) bool {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	return tl.tickers[i].stopped
}

type publishRecorder struct {
	ch chan models.Site
}

func newPublishRecorder() *publishRecorder {
	return &publishRecorder{ch: make(chan models.Site, 64)}
}

func (r *publishRecorder) Publish(_ string, site models.Site) {
	r.ch <- site
}

func (r *publishRecorder) next(t *testing.T) models.Site {
	t.Helper()

	select {
	case site := <-r.ch:
		return site
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for site update")

		return models.Site{}
	}
}

func (r *publishRecorder) none(t *testing.T) {
	t.Helper()

	select {
	case site := <-r.ch:
		t.Fatalf("unexpected site update for %s", site.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func site(id string, level models.SecurityLevel) *models.Site {
	return &models.Site{ID: id, Label: "Site " + id, SecurityLevel: level}
}

func boolPtr(b bool) *bool {
	return &b
}

func newTestScheduler(t *testing.T, cfg Config, client SiteClient, pub Publisher, opts ...Option) *Scheduler {
	t.Helper()

	s, err := NewScheduler(cfg, client, pub, logger.NewTestLogger(), opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Stop(context.Background())
	})

	return s
}

func TestScheduler_SwitchesToFastCadenceAfterTransition(t *testing.T) {
	ctrl := gomock.NewController(t)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock, tl := newTimeline(ctrl, start)

	client := NewMockSiteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelDisarmed), nil),
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelArmed), nil).AnyTimes(),
	)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	pub := newPublishRecorder()
	s := newTestScheduler(t, Config{SiteID: "site-1"}, client, pub, WithClock(clock), WithMeterProvider(provider))

	require.True(t, s.Start(context.Background()))
	assert.Equal(t, models.SecurityLevelDisarmed, pub.next(t).SecurityLevel)
	assert.Equal(t, CadenceSlow, s.Cadence())

	tl.fire(t, start.Add(60*time.Second))
	assert.Equal(t, models.SecurityLevelArmed, pub.next(t).SecurityLevel)
	assert.Equal(t, CadenceFast, s.Cadence())
	assert.Equal(t, time.Second, s.Interval())
	assert.Equal(t, []time.Duration{DefaultInterval, time.Second}, tl.intervals())
	assert.True(t, tl.stopped(0))

	// 1s into the fast window: no change.
	tl.fire(t, start.Add(61*time.Second))
	pub.next(t)
	assert.Equal(t, CadenceFast, s.Cadence())
	assert.Len(t, tl.intervals(), 2)

	// 61s after the transition the window has lapsed.
	tl.fire(t, start.Add(121*time.Second))
	pub.next(t)
	assert.Equal(t, CadenceSlow, s.Cadence())
	assert.Equal(t, []time.Duration{DefaultInterval, time.Second, DefaultInterval}, tl.intervals())
	assert.True(t, tl.stopped(1))

	require.NoError(t, s.Stop(context.Background()))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(2), sumCounter(rm, metricCadenceSwitches))
	assert.Equal(t, int64(4), sumCounter(rm, metricTicks))
}

func TestScheduler_FlapExtendsFastWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock, tl := newTimeline(ctrl, start)

	client := NewMockSiteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelDisarmed), nil),
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelArmed), nil),
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelDisarmed), nil).AnyTimes(),
	)

	pub := newPublishRecorder()
	s := newTestScheduler(t, Config{SiteID: "site-1"}, client, pub, WithClock(clock))

	require.True(t, s.Start(context.Background()))
	pub.next(t)

	tl.fire(t, start.Add(60*time.Second))
	pub.next(t)
	require.Equal(t, CadenceFast, s.Cadence())

	// Flap back 30s into the window.
	tl.fire(t, start.Add(90*time.Second))
	assert.Equal(t, models.SecurityLevelDisarmed, pub.next(t).SecurityLevel)
	assert.Equal(t, CadenceFast, s.Cadence())
	assert.Len(t, tl.intervals(), 2, "already fast, ticker is not restarted")

	tl.fire(t, start.Add(149*time.Second))
	pub.next(t)
	assert.Equal(t, CadenceFast, s.Cadence())

	tl.fire(t, start.Add(150*time.Second))
	pub.next(t)
	assert.Equal(t, CadenceSlow, s.Cadence())
	assert.Equal(t, []time.Duration{DefaultInterval, time.Second, DefaultInterval}, tl.intervals())
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock, tl := newTimeline(ctrl, time.Now())

	client := NewMockSiteClient(ctrl)
	client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelArmed), nil).Times(1)

	pub := newPublishRecorder()
	s := newTestScheduler(t, Config{SiteID: "site-1"}, client, pub, WithClock(clock))

	require.True(t, s.Start(context.Background()))
	pub.next(t)

	assert.False(t, s.Start(context.Background()))
	pub.none(t)
	assert.Len(t, tl.intervals(), 1)
	assert.True(t, s.Running())
}

func TestScheduler_AdaptiveDisabledKeepsBaseInterval(t *testing.T) {
	ctrl := gomock.NewController(t)
	start := time.Now()
	clock, tl := newTimeline(ctrl, start)

	client := NewMockSiteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelDisarmed), nil),
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelArmed), nil),
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelDisarmed), nil),
	)

	cfg := Config{
		SiteID:          "site-1",
		Interval:        models.Duration(30 * time.Second),
		AdaptivePolling: boolPtr(false),
	}

	pub := newPublishRecorder()
	s := newTestScheduler(t, cfg, client, pub, WithClock(clock))

	require.True(t, s.Start(context.Background()))
	assert.Equal(t, models.SecurityLevelDisarmed, pub.next(t).SecurityLevel)

	tl.fire(t, start.Add(30*time.Second))
	assert.Equal(t, models.SecurityLevelArmed, pub.next(t).SecurityLevel)

	tl.fire(t, start.Add(60*time.Second))
	assert.Equal(t, models.SecurityLevelDisarmed, pub.next(t).SecurityLevel)

	assert.Equal(t, CadenceSlow, s.Cadence())
	assert.Equal(t, []time.Duration{30 * time.Second}, tl.intervals())
	assert.False(t, s.Status().AdaptivePolling)
}

func TestScheduler_SiteErrorDoesNotAbortCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	start := time.Now()
	clock, tl := newTimeline(ctrl, start)

	client := NewMockSiteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().GetSite(gomock.Any(), "a").Return(nil, errUnavailable),
		client.EXPECT().GetSite(gomock.Any(), "b").Return(site("b", models.SecurityLevelArmed), nil),
		client.EXPECT().GetSite(gomock.Any(), "a").Return(site("a", models.SecurityLevelArmed), nil),
		client.EXPECT().GetSite(gomock.Any(), "b").Return(site("b", models.SecurityLevelArmed), nil),
	)

	pub := newPublishRecorder()
	s := newTestScheduler(t, Config{}, client, pub, WithClock(clock))
	s.TrackSite("a")
	s.TrackSite("b")
	s.TrackSite("a")

	require.True(t, s.Start(context.Background()))
	assert.Equal(t, "b", pub.next(t).ID)
	pub.none(t)
	assert.True(t, s.Running())

	tl.fire(t, start.Add(DefaultInterval))
	assert.Equal(t, "a", pub.next(t).ID)
	assert.Equal(t, "b", pub.next(t).ID)
	assert.Equal(t, []string{"a", "b"}, s.Status().Sites)
}

// callLog records client and publisher calls on one ordered timeline.
type callLog struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
	want  int
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, call)
	if len(l.calls) == l.want {
		close(l.done)
	}
}

func (l *callLog) wait(t *testing.T) []string {
	t.Helper()

	select {
	case <-l.done:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for poll cycle")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.calls...)
}

func TestScheduler_PublishesEachSiteBeforeFetchingTheNext(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock, _ := newTimeline(ctrl, time.Now())

	calls := &callLog{done: make(chan struct{}), want: 4}

	client := NewMockSiteClient(ctrl)
	client.EXPECT().GetSite(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id string) (*models.Site, error) {
			calls.add("get:" + id)

			return site(id, models.SecurityLevelArmed), nil
		}).Times(2)

	pub := PublisherFunc(func(siteID string, _ models.Site) {
		calls.add("publish:" + siteID)
	})

	s := newTestScheduler(t, Config{}, client, pub, WithClock(clock))
	s.TrackSite("a")
	s.TrackSite("b")

	require.True(t, s.Start(context.Background()))
	assert.Equal(t, []string{"get:a", "publish:a", "get:b", "publish:b"}, calls.wait(t))
}

func TestScheduler_DiscoversSitesInFirstSeenOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	start := time.Now()
	clock, tl := newTimeline(ctrl, start)

	client := NewMockSiteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().GetSites(gomock.Any()).Return([]models.Site{
			*site("b", models.SecurityLevelArmed),
			*site("a", models.SecurityLevelDisarmed),
		}, nil),
		client.EXPECT().GetSites(gomock.Any()).Return([]models.Site{
			*site("a", models.SecurityLevelDisarmed),
			*site("c", models.SecurityLevelPartial),
			*site("b", models.SecurityLevelArmed),
		}, nil),
	)

	pub := newPublishRecorder()
	s := newTestScheduler(t, Config{}, client, pub, WithClock(clock))

	require.True(t, s.Start(context.Background()))
	assert.Equal(t, "b", pub.next(t).ID)
	assert.Equal(t, "a", pub.next(t).ID)

	tl.fire(t, start.Add(DefaultInterval))
	assert.Equal(t, "b", pub.next(t).ID)
	assert.Equal(t, "a", pub.next(t).ID)
	assert.Equal(t, "c", pub.next(t).ID)
	assert.Equal(t, []string{"b", "a", "c"}, s.Status().Sites)
}

func TestScheduler_ConfiguredSiteOverridesTrackedSites(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock, _ := newTimeline(ctrl, time.Now())

	client := NewMockSiteClient(ctrl)
	client.EXPECT().GetSite(gomock.Any(), "only").Return(site("only", models.SecurityLevelArmed), nil)

	pub := newPublishRecorder()
	s := newTestScheduler(t, Config{SiteID: "only"}, client, pub, WithClock(clock))
	s.TrackSite("other")

	require.True(t, s.Start(context.Background()))
	assert.Equal(t, "only", pub.next(t).ID)
	pub.none(t)
}

func TestScheduler_FastWindowLapsesWhenPollsFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	start := time.Now()
	clock, tl := newTimeline(ctrl, start)

	client := NewMockSiteClient(ctrl)
	gomock.InOrder(
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelDisarmed), nil),
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelArmed), nil),
		client.EXPECT().GetSite(gomock.Any(), "site-1").Return(nil, errUnavailable).AnyTimes(),
	)

	pub := newPublishRecorder()
	s := newTestScheduler(t, Config{SiteID: "site-1"}, client, pub, WithClock(clock))

	require.True(t, s.Start(context.Background()))
	pub.next(t)

	tl.fire(t, start.Add(60*time.Second))
	pub.next(t)
	require.Equal(t, CadenceFast, s.Cadence())

	tl.fire(t, start.Add(121*time.Second))

	require.Eventually(t, func() bool {
		return s.Cadence() == CadenceSlow
	}, waitTimeout, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(tl.intervals()) == 3
	}, waitTimeout, 10*time.Millisecond)
	pub.none(t)
}

func TestScheduler_RestartAfterStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock, tl := newTimeline(ctrl, time.Now())

	client := NewMockSiteClient(ctrl)
	client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelArmed), nil).Times(2)

	pub := newPublishRecorder()
	s := newTestScheduler(t, Config{SiteID: "site-1"}, client, pub, WithClock(clock))

	require.NoError(t, s.Stop(context.Background()), "stopping an idle scheduler is a no-op")

	require.True(t, s.Start(context.Background()))
	pub.next(t)

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Running())
	assert.True(t, tl.stopped(0))

	require.True(t, s.Start(context.Background()))
	pub.next(t)
	assert.True(t, s.Running())
	assert.Len(t, tl.intervals(), 2)
}

func TestScheduler_ContextCancelEndsLoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	clock, _ := newTimeline(ctrl, time.Now())

	client := NewMockSiteClient(ctrl)
	client.EXPECT().GetSite(gomock.Any(), "site-1").Return(site("site-1", models.SecurityLevelArmed), nil)

	pub := newPublishRecorder()
	s := newTestScheduler(t, Config{SiteID: "site-1"}, client, pub, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())

	require.True(t, s.Start(ctx))
	pub.next(t)

	cancel()

	require.Eventually(t, func() bool {
		return !s.Running()
	}, waitTimeout, 10*time.Millisecond)
}

func TestNewScheduler_Validation(t *testing.T) {
	client := NewMockSiteClient(gomock.NewController(t))
	pub := newPublishRecorder()

	_, err := NewScheduler(Config{}, nil, pub, nil)
	require.ErrorIs(t, err, errSiteClientRequired)

	_, err = NewScheduler(Config{}, client, nil, nil)
	require.ErrorIs(t, err, errPublisherRequired)

	_, err = NewScheduler(Config{Interval: models.Duration(time.Second)}, client, pub, nil)
	require.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewScheduler(Config{Interval: models.Duration(10 * time.Minute)}, client, pub, nil)
	require.ErrorIs(t, err, ErrInvalidInterval)

	s, err := NewScheduler(Config{}, client, pub, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, s.Interval())
	assert.False(t, s.Running())

	st := s.Status()
	assert.True(t, st.AdaptivePolling)
	assert.Equal(t, CadenceSlow, st.Cadence)
	assert.Nil(t, st.LastPollAt)
	assert.Nil(t, st.LastTransitionAt)
}

func TestConfig(t *testing.T) {
	var cfg Config

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Adaptive())
	assert.Equal(t, models.Duration(DefaultInterval), cfg.Interval)
	assert.Equal(t, models.Duration(DefaultFastInterval), cfg.FastInterval)
	assert.Equal(t, models.Duration(DefaultFastDuration), cfg.FastDuration)

	cfg.FastDuration = models.Duration(-time.Second)
	require.ErrorIs(t, cfg.Validate(), ErrInvalidFastDuration)

	cfg.FastDuration = models.Duration(time.Minute)
	cfg.FastInterval = models.Duration(-time.Second)
	require.ErrorIs(t, cfg.Validate(), ErrInvalidFastInterval)

	cfg.AdaptivePolling = boolPtr(false)
	assert.False(t, cfg.Adaptive())
}

func sumCounter(rm metricdata.ResourceMetrics, name string) int64 {
	var total int64

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}

	return total
}
