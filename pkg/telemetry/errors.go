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

package telemetry

import "errors"

var (
	errURLRequired         = errors.New("telemetry url is required")
	errDatabaseRequired    = errors.New("telemetry database is required")
	errMeasurementRequired = errors.New("telemetry measurement is required")
	errUnexpectedStatus    = errors.New("unexpected response status")
	errQueryFailed         = errors.New("query returned an error")
	errMissingTime         = errors.New("row has no parseable time")
	errUnknownPatternField = errors.New("unknown pattern field")
)
