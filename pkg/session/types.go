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

// Package session implements the Session Manager (spec §4.5): the Session
// entity, its persistence format, and the Created -> Persisted ->
// (Executing -> Executed) | Cancelled execution state machine.
package session

import "time"

// State is one of the session execution state machine's states.
type State string

const (
	Created    State = "created"
	Persisted  State = "persisted"
	Executing  State = "executing"
	Executed   State = "executed"
	Cancelled  State = "cancelled"
)

// Configuration holds the recognized per-session options (spec §3).
type Configuration struct {
	ProvideRawSeries bool   `json:"provide_raw_series" yaml:"provide_raw_series"`
	UserEmul         bool   `json:"user_emul" yaml:"user_emul"`
	BaseImageTag     string `json:"base_image_tag" yaml:"base_image_tag"`
	ScrapeIntervalS  int    `json:"scrape_interval_s" yaml:"scrape_interval_s"`
	PersistToStore   bool   `json:"persist_to_store" yaml:"persist_to_store"`
	NetworkDisabled  bool   `json:"network_disabled" yaml:"network_disabled"`
}

// Session is the unit of work (spec §3). BuildArgs must contain at minimum
// a "binary_file" key naming the target inside the image.
type Session struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	SHA256             string            `json:"sha256"`
	BuildArgs          map[string]string `json:"buildargs"`
	ProcessMonitorFlag bool              `json:"process_monitor_flag"`
	CreatedAt          time.Time         `json:"timestamp"`
	ExecutedAt         *time.Time        `json:"executed"`
	Configuration      Configuration     `json:"configuration"`
	ReportsList        []string          `json:"reports_list"`

	State State `json:"-"`
}

// BinaryFile returns the build_args["binary_file"] value, the name of the
// target binary inside the image.
func (s *Session) BinaryFile() string {
	return s.BuildArgs["binary_file"]
}

// AppendReport records a newly-published report id, preserving emission
// order (spec §3 invariant: reports grows monotonically).
func (s *Session) AppendReport(reportID string) {
	s.ReportsList = append(s.ReportsList, reportID)
}
