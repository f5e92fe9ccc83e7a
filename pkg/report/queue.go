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

package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/sandboxd/pkg/defaults"
	"github.com/NVIDIA/sandboxd/pkg/errs"
)

// deadLetterExchange and deadLetterQueue back the consumer-side "never
// silently drop a malformed message" contract (spec §6): any message that
// the consumer cannot parse is republished here instead of being acked away.
const (
	deadLetterExchange = "sandboxd.dlx"
	deadLetterQueue    = "sandboxd.dead-letters"
)

// Queue is the process-wide, lazily-initialized durable queue handle (the
// "global daemon handle" pattern from spec §9 Design Notes, applied to the
// broker connection instead of the container daemon).
type Queue struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	name    string
	limiter *rate.Limiter
}

// NewQueue returns a Queue bound to url/name. The connection is not opened
// until the first Publish call (lazy init, per Design Notes).
func NewQueue(url, name string) *Queue {
	return &Queue{
		url:     url,
		name:    name,
		limiter: rate.NewLimiter(rate.Every(defaults.QueuePublishBackoff), 1),
	}
}

// ensureChannel lazily dials the broker and declares the durable queue plus
// its dead-letter topology exactly once.
func (q *Queue) ensureChannel() (*amqp.Channel, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.channel != nil && !q.channel.IsClosed() {
		return q.channel, nil
	}

	conn, err := amqp.Dial(q.url)
	if err != nil {
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "report.Queue", "dial broker", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "report.Queue", "open channel", err)
	}

	if err := ch.ExchangeDeclare(deadLetterExchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "report.Queue", "declare dead-letter exchange", err)
	}
	if _, err := ch.QueueDeclare(deadLetterQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "report.Queue", "declare dead-letter queue", err)
	}
	if err := ch.QueueBind(deadLetterQueue, "", deadLetterExchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "report.Queue", "bind dead-letter queue", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange": deadLetterExchange,
	}
	if _, err := ch.QueueDeclare(q.name, true, false, false, false, args); err != nil {
		ch.Close()
		conn.Close()
		return nil, errs.Wrap(errs.KindEnvironmentUnavailable, "report.Queue", "declare durable queue", err)
	}

	q.conn = conn
	q.channel = ch
	return ch, nil
}

// Ping verifies the broker is reachable, for the Session Manager's
// pre-execution environment check (spec §4.5 step 2, §8 "queue down"
// scenario).
func (q *Queue) Ping(ctx context.Context) error {
	_, err := q.ensureChannel()
	return err
}

// Publish sends a persistent message to the durable queue, retrying with a
// bounded, rate-limited backoff before surfacing an environment-unavailable
// error. A failed publish never mutates the caller's in-flight trace (spec
// §4.6, §5).
func (q *Queue) Publish(ctx context.Context, body []byte) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := q.limiter.Wait(ctx); err != nil {
				return errs.Wrap(errs.KindEnvironmentUnavailable, "report.Queue.Publish", "backoff wait cancelled", err)
			}
		}

		ch, err := q.ensureChannel()
		if err != nil {
			lastErr = err
			continue
		}

		err = ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
		if err == nil {
			return nil
		}
		lastErr = err
		slog.Warn("queue publish failed, retrying", "attempt", attempt, "error", err)
	}
	return errs.Wrap(errs.KindEnvironmentUnavailable, "report.Queue.Publish", fmt.Sprintf("publish failed after %d attempts", maxAttempts), lastErr)
}

// Close releases the channel and connection. Safe to call multiple times.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var err error
	if q.channel != nil {
		err = q.channel.Close()
		q.channel = nil
	}
	if q.conn != nil {
		if cerr := q.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		q.conn = nil
	}
	return err
}
