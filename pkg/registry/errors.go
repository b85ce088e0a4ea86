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

package registry

import "errors"

var (
	errNoSource          = errors.New("registry needs either cnpg or devices")
	errBothSources       = errors.New("registry accepts cnpg or devices, not both")
	errEmptyDeviceID     = errors.New("device_id is required")
	errDuplicateDeviceID = errors.New("duplicate device_id")
	errTLSFilesRequired  = errors.New("cnpg tls: cert_file, key_file, and ca_file are required")
	errAppendCA          = errors.New("cnpg tls: unable to append CA certificate")
)
