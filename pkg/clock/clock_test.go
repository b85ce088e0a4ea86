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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClockSince(t *testing.T) {
	c := Real()

	past := c.Now().Add(-2 * time.Second)
	assert.GreaterOrEqual(t, c.Since(past), 2*time.Second)
}

func TestRealTickerFires(t *testing.T) {
	tk := Real().Ticker(5 * time.Millisecond)
	defer tk.Stop()

	select {
	case <-tk.Chan():
	case <-time.After(time.Second):
		t.Fatal("ticker did not fire")
	}
}
