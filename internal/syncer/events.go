// Copyright (c) 2026 John Earle
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

package syncer

import (
	"time"

	"github.com/mindops/hotelsync/internal/models"
)

// Event types emitted during a run.
const (
	EventProgress = "progress"
	EventComplete = "complete"
)

// Event is one progress notification for a sync run. Events carry a
// per-run sequence number and are emitted in order; counters are cumulative
// so a late subscriber catches up from any event.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	TenantID  string    `json:"tenant_id"`
	Seq       int       `json:"seq"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`

	// Progress events describe the item just finished.
	EmailID      int64            `json:"email_id,omitempty"`
	ItemStatus   string           `json:"item_status,omitempty"`
	ErrorKind    models.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`

	// Complete events carry the final run status.
	RunStatus string `json:"run_status,omitempty"`
}
