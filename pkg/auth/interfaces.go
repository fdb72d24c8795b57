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

package auth

import (
	"context"

	"golang.org/x/oauth2"
)

//go:generate mockgen -destination=mock_auth.go -package=auth github.com/carverauto/alarmbridge/pkg/auth Exchanger

// Exchanger talks to the remote token endpoint.
type Exchanger interface {
	PasswordGrant(ctx context.Context) (*oauth2.Token, error)
	RefreshGrant(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}
