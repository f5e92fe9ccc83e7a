// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package defaults

import (
	"testing"
	"time"
)

func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		minValue time.Duration
		maxValue time.Duration
	}{
		{"SoftTimeout", SoftTimeout, 1 * time.Second, 60 * time.Second},
		{"HardTimeout", HardTimeout, 5 * time.Second, 120 * time.Second},
		{"SampleInterval", SampleInterval, 10 * time.Millisecond, 1 * time.Second},
		{"PublishInterval", PublishInterval, 100 * time.Millisecond, 5 * time.Second},
		{"QueuePublishBackoff", QueuePublishBackoff, 50 * time.Millisecond, 5 * time.Second},
		{"ScrapeInterval", ScrapeInterval, 500 * time.Millisecond, 30 * time.Second},
		{"TeardownGracePeriod", TeardownGracePeriod, 1 * time.Second, 60 * time.Second},
		{"MetricsServerShutdownTimeout", MetricsServerShutdownTimeout, 5 * time.Second, 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.timeout < tt.minValue {
				t.Errorf("%s (%v) is below minimum expected value (%v)", tt.name, tt.timeout, tt.minValue)
			}
			if tt.timeout > tt.maxValue {
				t.Errorf("%s (%v) is above maximum expected value (%v)", tt.name, tt.timeout, tt.maxValue)
			}
		})
	}
}

func TestSoftTimeoutLessThanHard(t *testing.T) {
	if SoftTimeout >= HardTimeout {
		t.Errorf("SoftTimeout (%v) should be less than HardTimeout (%v)", SoftTimeout, HardTimeout)
	}
}

func TestSampleIntervalLessThanPublish(t *testing.T) {
	if SampleInterval >= PublishInterval {
		t.Errorf("SampleInterval (%v) should be less than PublishInterval (%v)", SampleInterval, PublishInterval)
	}
}

func TestResourceLimitsPositive(t *testing.T) {
	if CPUCores <= 0 {
		t.Errorf("CPUCores (%v) must be positive", CPUCores)
	}
	if MemoryBytes <= 0 {
		t.Errorf("MemoryBytes (%v) must be positive", MemoryBytes)
	}
}
