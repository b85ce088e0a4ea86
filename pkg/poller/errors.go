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

import "errors"

var (
	errNegativeDuration   = errors.New("duration must not be negative")
	errInvalidStaleness   = errors.New("staleness_intervals must be positive")
	errInvalidConcurrency = errors.New("max_concurrency must be positive")
	errTimeoutTooLong     = errors.New("timeout must be shorter than its poll interval")
	errAlreadyStarted     = errors.New("poller already started")
	errStopTimeout        = errors.New("in-flight poll work did not finish before stop timeout")
	errRegistryPanic      = errors.New("registry source panicked")
)
