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

// Package events fans reconciled site state out to local subscribers and,
// optionally, to NATS JetStream.
package events

import (
	"sync"

	"github.com/carverauto/alarmbridge/pkg/logger"
	"github.com/carverauto/alarmbridge/pkg/models"
)

// Handler receives one site update. Handlers run on the publisher's
// goroutine and must not block.
type Handler func(siteID string, site models.Site)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id      uint64
	handler Handler
	bus     *Bus
}

// Unsubscribe removes the subscription from its bus. It is safe to call
// more than once and from inside a handler.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}

	s.bus.Unsubscribe(s)
}

// Bus is a synchronous single-topic broadcast of site updates. Handlers are
// called in registration order.
type Bus struct {
	logger logger.Logger

	mu     sync.Mutex
	subs   []*Subscription
	nextID uint64
	closed bool
}

// NewBus creates an empty bus.
func NewBus(log logger.Logger) *Bus {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Bus{logger: log}
}

// Subscribe registers h. After Close, the returned subscription is inert.
func (b *Bus) Subscribe(h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++

	sub := &Subscription{id: b.nextID, handler: h, bus: b}

	if b.closed || h == nil {
		return sub
	}

	b.subs = append(b.subs, sub)

	return sub
}

// Unsubscribe removes sub and reports whether it was registered.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id != sub.id {
			continue
		}

		next := make([]*Subscription, 0, len(b.subs)-1)
		next = append(next, b.subs[:i]...)
		next = append(next, b.subs[i+1:]...)
		b.subs = next

		return true
	}

	return false
}

// Publish delivers the update to every subscriber registered when Publish
// was called. Each subscriber receives its own copy of site.
func (b *Bus) Publish(siteID string, site models.Site) {
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, sub := range subs {
		b.deliver(sub, siteID, site.Clone())
	}
}

func (b *Bus) deliver(sub *Subscription, siteID string, site models.Site) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("site_id", siteID).
				Uint64("subscription", sub.id).
				Msg("Site update handler panicked")
		}
	}()

	sub.handler(siteID, site)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Close drops every subscription. Later publishes reach nobody.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = nil
	b.closed = true
}
