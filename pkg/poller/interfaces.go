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
	"time"

	"github.com/carverauto/alarmbridge/pkg/models"
)

//go:generate mockgen -destination=mock_poller.go -package=poller github.com/carverauto/alarmbridge/pkg/poller Clock,Ticker,SiteClient

// Clock abstracts time so the cadence logic can be driven by tests.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker is the subset of time.Ticker the scheduler uses.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// SiteClient fetches site state from the remote service.
type SiteClient interface {
	GetSites(ctx context.Context) ([]models.Site, error)
	GetSite(ctx context.Context, siteID string) (*models.Site, error)
}

// Publisher receives every freshly observed site snapshot.
type Publisher interface {
	Publish(siteID string, site models.Site)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(siteID string, site models.Site)

func (f PublisherFunc) Publish(siteID string, site models.Site) {
	f(siteID, site)
}
