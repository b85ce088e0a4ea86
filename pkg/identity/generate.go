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

package identity

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand/v2"
	"strconv"
)

const (
	seriesNoMin = 1_000_000_000
	seriesNoMax = 9_999_999_999
)

// GenerateSeriesNo returns a ten digit decimal drawn uniformly from
// [1000000000, 9999999999].
func GenerateSeriesNo() string {
	span := int64(seriesNoMax - seriesNoMin + 1)

	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return strconv.FormatInt(seriesNoMin+mrand.Int64N(span), 10)
	}

	return strconv.FormatInt(seriesNoMin+n.Int64(), 10)
}
