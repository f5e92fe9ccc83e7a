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

package scraper

import (
	"fmt"
	"path/filepath"

	"github.com/NVIDIA/sandboxd/pkg/errs"
	"github.com/NVIDIA/sandboxd/pkg/report"
	"github.com/NVIDIA/sandboxd/pkg/store"
)

// PersistResults writes each metric family's raw response as its own file
// (filename derived from the metric identifier), then builds the one report
// envelope combining them, writes it to the store as a scraper report
// document, and returns it for the Session Manager to publish (spec §4.7).
func PersistResults(st *store.Store, sessionID string, results []Result) (report.Envelope, error) {
	metadata := map[string]any{"metric_count": len(results)}
	resultPayload := make(map[string]any, len(results))

	for _, r := range results {
		filename := fmt.Sprintf("scraper-%s-%s.json", sessionID, r.MetricID)
		path := filepath.Join(st.Root(), filename)
		if err := st.WriteJSON(path, r.Matrix); err != nil {
			return report.Envelope{}, errs.Wrap(errs.KindEnvironmentUnavailable, "scraper.PersistResults", "write raw metric file", err)
		}
		resultPayload[r.MetricID] = r.Matrix
	}

	env := report.Envelope{
		SessionID:  sessionID,
		ReportType: report.TypeScraper,
		Metadata:   metadata,
		Result:     resultPayload,
	}
	if err := env.Validate(); err != nil {
		return report.Envelope{}, err
	}
	if err := st.WriteJSON(st.ReportPath(sessionID, string(report.TypeScraper), 0), env); err != nil {
		return report.Envelope{}, errs.Wrap(errs.KindEnvironmentUnavailable, "scraper.PersistResults", "write scraper report document", err)
	}
	return env, nil
}
