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
	"errors"
	"fmt"
)

var (
	ErrInvalidInterval     = fmt.Errorf("invalid polling interval")
	ErrInvalidFastInterval = fmt.Errorf("invalid fast polling interval")
	ErrInvalidFastDuration = fmt.Errorf("invalid fast polling duration")

	errSiteClientRequired = errors.New("site client is required")
	errPublisherRequired  = errors.New("publisher is required")
	errEmptySite          = errors.New("site client returned no site")
)
