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

package admin

import (
	"context"

	"github.com/carverauto/alarmbridge/pkg/auth"
	"github.com/carverauto/alarmbridge/pkg/models"
	"github.com/carverauto/alarmbridge/pkg/poller"
)

//go:generate mockgen -destination=mock_admin.go -package=admin github.com/carverauto/alarmbridge/pkg/admin Service

// Service is the account handle the endpoint operates on.
type Service interface {
	GetSites(ctx context.Context) ([]models.Site, error)
	GetSite(ctx context.Context, siteID string) (*models.Site, error)
	SetSecurityLevel(ctx context.Context, siteID string, level models.SecurityLevel) (*models.SecurityLevelResult, error)
	GetDevices(ctx context.Context, siteID string) ([]models.Device, error)
	ClearCredential(ctx context.Context) error
	CredentialState() auth.State
	StartPolling() bool
	StopPolling(ctx context.Context) error
	PollingStatus() poller.Status
}
