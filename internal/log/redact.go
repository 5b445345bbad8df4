// Copyright 2025 Tom Barlow
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

package log

import (
	"context"
	"log/slog"

	"github.com/tombee/trackerbridge/pkg/secrets"
)

// redactingHandler wraps another slog.Handler, masking any registered
// tracker API key that appears in a record's message or string attributes.
// Bugzilla and Jira API keys flow through HTTP clients built straight from
// config, never through the logger's structured fields, but a wrapped
// error's message (e.g. a transport error echoing a request URL) could still
// carry one, so every record is scrubbed before it reaches the sink.
type redactingHandler struct {
	next   slog.Handler
	masker *secrets.Masker
}

// NewRedacting wraps the logger New would build with API-key redaction.
// Register every known secret value with masker before building the logger.
func NewRedacting(cfg *Config, masker *secrets.Masker) *slog.Logger {
	base := New(cfg)
	return slog.New(&redactingHandler{next: base.Handler(), masker: masker})
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, h.masker.Mask(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		newRecord.AddAttrs(h.redactAttr(a))
		return true
	})

	return h.next.Handle(ctx, newRecord)
}

func (h *redactingHandler) redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, h.masker.Mask(a.Value.String()))
	}
	return a
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &redactingHandler{next: h.next.WithAttrs(attrs), masker: h.masker}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name), masker: h.masker}
}
