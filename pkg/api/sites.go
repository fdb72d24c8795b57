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

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/carverauto/alarmbridge/pkg/models"
)

type securityLevelRequest struct {
	SecurityLevel models.SecurityLevel `json:"security_level"`
}

// GetSites lists every site visible to the account.
func (c *Client) GetSites(ctx context.Context) ([]models.Site, error) {
	var sites []models.Site

	if err := c.do(ctx, "GetSites", http.MethodGet, "/sites", nil, &sites); err != nil {
		return nil, err
	}

	return sites, nil
}

// GetSite fetches one site.
func (c *Client) GetSite(ctx context.Context, siteID string) (*models.Site, error) {
	if siteID == "" {
		return nil, ErrSiteIDRequired
	}

	var site models.Site

	if err := c.do(ctx, "GetSite", http.MethodGet, sitePath(siteID), nil, &site); err != nil {
		return nil, err
	}

	return &site, nil
}

// SetSecurityLevel asks the remote service to arm or disarm a site. The
// change is applied asynchronously; the returned task identifies it.
func (c *Client) SetSecurityLevel(ctx context.Context, siteID string, level models.SecurityLevel) (*models.SecurityLevelResult, error) {
	if siteID == "" {
		return nil, ErrSiteIDRequired
	}

	if !level.Valid() {
		return nil, models.ErrInvalidSecurityLevel
	}

	var result models.SecurityLevelResult

	err := c.do(ctx, "SetSecurityLevel", http.MethodPut, sitePath(siteID)+"/security-level",
		securityLevelRequest{SecurityLevel: level}, &result)
	if err != nil {
		return nil, err
	}

	if result.SiteID == "" {
		result.SiteID = siteID
	}

	return &result, nil
}

// GetDevices lists the devices attached to a site.
func (c *Client) GetDevices(ctx context.Context, siteID string) ([]models.Device, error) {
	if siteID == "" {
		return nil, ErrSiteIDRequired
	}

	var devices []models.Device

	if err := c.do(ctx, "GetDevices", http.MethodGet, sitePath(siteID)+"/devices", nil, &devices); err != nil {
		return nil, err
	}

	return devices, nil
}

func sitePath(siteID string) string {
	return "/sites/" + url.PathEscape(siteID)
}
