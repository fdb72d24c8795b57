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

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
)

const (
	DefaultStream        = "ALARMBRIDGE"
	DefaultSubjectPrefix = "alarmbridge.sites"

	siteStateEventType = "com.carverauto.alarmbridge.site.state"
	eventSource        = "alarmbridge"
	flushTimeout       = 5 * time.Second
)

var (
	ErrNATSURLRequired = errors.New("nats url is required")
	errFlushTimeout    = errors.New("timed out waiting for JetStream acks")
)

// NATSConfig configures the JetStream forwarder.
type NATSConfig struct {
	URL           string         `json:"url"`
	Stream        string         `json:"stream"`
	SubjectPrefix string         `json:"subject_prefix"`
	CredsFile     string         `json:"creds_file,omitempty"`
	TLS           *NATSTLSConfig `json:"tls,omitempty"`
}

func (c *NATSConfig) applyDefaults() {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}

	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}

	c.SubjectPrefix = strings.TrimSuffix(c.SubjectPrefix, ".")
}

// NATSForwarder republishes bus updates as CloudEvents on JetStream subjects
// of the form <prefix>.<site_id>.state.
type NATSForwarder struct {
	cfg    NATSConfig
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.Logger
	now    func() time.Time

	mu  sync.Mutex
	sub *Subscription
}

// NewNATSForwarder connects to NATS and makes sure the stream exists.
func NewNATSForwarder(ctx context.Context, cfg NATSConfig, log logger.Logger, opts ...nats.Option) (*NATSForwarder, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	cfg.applyDefaults()

	if log == nil {
		log = logger.NewTestLogger()
	}

	secure, err := cfg.connectOptions()
	if err != nil {
		return nil, err
	}

	opts = append(append([]nats.Option{
		nats.Name("alarmbridge"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}, secure...), opts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc, jetstream.WithPublishAsyncErrHandler(
		func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("JetStream rejected site state event")
		}))
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.Stream(ctx, cfg.Stream); err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.SubjectPrefix + ".>"},
		})
		if err != nil {
			nc.Close()

			return nil, fmt.Errorf("failed to create or get stream %s: %w", cfg.Stream, err)
		}
	}

	return &NATSForwarder{
		cfg:    cfg,
		nc:     nc,
		js:     js,
		logger: log,
		now:    time.Now,
	}, nil
}

// Attach subscribes the forwarder to bus. Calling Attach again moves it to
// the new bus.
func (f *NATSForwarder) Attach(bus *Bus) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sub.Unsubscribe()
	f.sub = bus.Subscribe(f.Handle)
}

// Subject returns the subject a site's updates are published on.
func (f *NATSForwarder) Subject(siteID string) string {
	return f.cfg.SubjectPrefix + "." + subjectToken(siteID) + ".state"
}

// Handle publishes one update without waiting for the ack.
func (f *NATSForwarder) Handle(siteID string, site models.Site) {
	now := f.now().UTC()
	subject := f.Subject(siteID)

	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            siteStateEventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &now,
		Data: models.SiteStateEventData{
			SiteID:        siteID,
			Label:         site.Label,
			SecurityLevel: site.SecurityLevel,
			Online:        site.Online,
			ObservedAt:    now,
		},
	}

	payload, err := json.Marshal(event)
	if err != nil {
		f.logger.Error().Err(err).Str("site_id", siteID).Msg("Failed to marshal site state event")

		return
	}

	if _, err := f.js.PublishAsync(subject, payload); err != nil {
		f.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to publish site state event")
	}
}

// Close detaches from the bus, waits briefly for outstanding acks and closes
// the connection.
func (f *NATSForwarder) Close(ctx context.Context) error {
	f.mu.Lock()
	f.sub.Unsubscribe()
	f.sub = nil
	f.mu.Unlock()

	var err error

	select {
	case <-f.js.PublishAsyncComplete():
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(flushTimeout):
		err = errFlushTimeout
	}

	f.nc.Close()

	return err
}

// subjectToken makes a site id safe for use as a single subject token.
func subjectToken(siteID string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		default:
			return r
		}
	}, siteID)
}
