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

// Package webhook is the HTTP intake for source-tracker webhook
// notifications: it decodes the envelope, consults the queue for
// postpone-vs-process, invokes the runner, and enqueues on failure.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tombee/trackerbridge/internal/metrics"
	"github.com/tombee/trackerbridge/internal/queue"
	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

// Handler is the HTTP intake endpoint.
type Handler struct {
	Queue        queue.Backend
	Process      ProcessFunc
	SharedSecret string
	Logger       *slog.Logger
}

// ProcessFunc runs the live processing path: classify and pipeline-execute
// the request. Returning a non-nil error that is NOT an
// *errors.IgnoreInvalidRequestError means the request should be enqueued for
// retry; an IgnoreInvalidRequestError means drop it silently.
type ProcessFunc func(r *http.Request, request sourcetracker.WebhookRequest) error

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// ServeHTTP implements the webhook intake described in spec.md §6: answer 400
// if the body cannot be read and 401 if a configured signature check fails,
// validate the envelope (422 if malformed), consult the queue for
// postpone-vs-process, invoke the processing callback, enqueue on a
// non-ignore error, and answer 200 otherwise.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if h.SharedSecret != "" {
		if err := h.verify(r, body); err != nil {
			h.logger().Warn("webhook signature verification failed", "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	request, err := decodeWireRequest(body)
	if err != nil {
		h.logger().Warn("malformed webhook envelope", "error", err)
		http.Error(w, "malformed webhook envelope", http.StatusUnprocessableEntity)
		return
	}

	size, err := h.Queue.Size(request.Bug.ID)
	if err != nil {
		h.logger().Error("failed to read queue size, treating as postpone", "bug_id", request.Bug.ID, "error", err)
		size = 1
	}

	if size > 0 {
		h.enqueue(request, nil)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.Process(r, request); err != nil {
		var ignore *trackererrors.IgnoreInvalidRequestError
		if !trackererrors.As(err, &ignore) {
			h.enqueue(request, err)
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) enqueue(request sourcetracker.WebhookRequest, processingErr error) {
	item := queue.Item{Payload: request}
	if processingErr != nil {
		item.Error = &queue.ItemError{
			Type:        "processing_error",
			Description: processingErr.Error(),
		}
	}
	if err := h.Queue.Put(item); err != nil {
		h.logger().Error("failed to enqueue webhook request", "bug_id", request.Bug.ID, "error", err)
		return
	}
	if size, err := h.Queue.Size(request.Bug.ID); err == nil {
		metrics.QueueSize.WithLabelValues(strconv.Itoa(request.Bug.ID)).Set(float64(size))
	}
}

func (h *Handler) verify(r *http.Request, body []byte) error {
	sig := r.Header.Get("X-Hub-Signature-256")
	if sig == "" {
		sig = r.Header.Get("X-Webhook-Signature")
	}
	if sig == "" {
		return errors.New("no signature header found")
	}

	parts := strings.SplitN(sig, "=", 2)
	algo, value := "sha256", sig
	if len(parts) == 2 {
		algo, value = parts[0], parts[1]
	}
	if algo != "sha256" {
		return errors.New("unsupported signature algorithm: " + algo)
	}

	mac := hmac.New(sha256.New, []byte(h.SharedSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(value), []byte(expected)) {
		return errors.New("signature mismatch")
	}
	return nil
}
