// Pressrank - News Reading Personalization Engine
// Copyright 2026 Pressrank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pressrank/pressrank

// Package syncer implements the fire-and-forget remote preference mirror.
//
// The preference store publishes a full snapshot after each local commit;
// the worker pushes full-document overwrites to the remote store. Local
// writes happen before the publish, and the last sync to complete wins.
// Sync failures are logged and counted, never propagated to the caller.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/pressrank/pressrank/internal/metrics"
	"github.com/pressrank/pressrank/internal/personalize"
)

// TopicPreferences carries preference snapshots and clears.
const TopicPreferences = "preferences.sync"

// Event is one sync message: either a snapshot to overwrite the remote
// document with, or a deletion.
type Event struct {
	UserID     personalize.UserID        `json:"user_id"`
	Deleted    bool                      `json:"deleted"`
	Affinity   *personalize.UserAffinity `json:"affinity,omitempty"`
	OccurredAt time.Time                 `json:"occurred_at"`
}

// NewBus creates the in-process pub/sub connecting the preference store to
// the sync worker. The output buffer keeps publishes from blocking event
// ingestion.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBus(logger zerolog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		newWatermillLogger(logger),
	)
}

// Publisher adapts the bus to personalize.SyncPublisher. Publish failures
// are logged, never returned: remote mirroring is best-effort by contract.
type Publisher struct {
	pub    message.Publisher
	logger zerolog.Logger
}

// NewPublisher creates a sync publisher over the bus.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPublisher(pub message.Publisher, logger zerolog.Logger) *Publisher {
	return &Publisher{
		pub:    pub,
		logger: logger.With().Str("component", "syncer").Logger(),
	}
}

// PublishPreferences schedules a full-document overwrite for the user.
func (p *Publisher) PublishPreferences(userID personalize.UserID, aff *personalize.UserAffinity) {
	p.publish(Event{UserID: userID, Affinity: aff, OccurredAt: time.Now()})
}

// PublishClear schedules deletion of the user's remote document.
func (p *Publisher) PublishClear(userID personalize.UserID) {
	p.publish(Event{UserID: userID, Deleted: true, OccurredAt: time.Now()})
}

func (p *Publisher) publish(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error().Err(err).Str("user", string(ev.UserID)).Msg("encode sync event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.pub.Publish(TopicPreferences, msg); err != nil {
		metrics.SyncAttempts.WithLabelValues("error").Inc()
		p.logger.Warn().Err(err).Str("user", string(ev.UserID)).Msg("publish sync event failed")
	}
}

// Worker consumes sync events and pushes them to the remote mirror. It
// implements suture.Service.
type Worker struct {
	sub     message.Subscriber
	remote  personalize.RemoteMirror
	timeout time.Duration
	logger  zerolog.Logger
}

// NewWorker creates a sync worker. pushTimeout bounds each remote call;
// zero selects 15s.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWorker(sub message.Subscriber, remote personalize.RemoteMirror, pushTimeout time.Duration, logger zerolog.Logger) *Worker {
	if pushTimeout <= 0 {
		pushTimeout = 15 * time.Second
	}
	return &Worker{
		sub:     sub,
		remote:  remote,
		timeout: pushTimeout,
		logger:  logger.With().Str("component", "sync-worker").Logger(),
	}
}

// Serve consumes the topic until the context is canceled. Every message is
// acked regardless of push outcome: a failed overwrite is superseded by the
// next snapshot anyway (last writer wins), so retrying stale documents
// would only reorder writes.
func (w *Worker) Serve(ctx context.Context) error {
	messages, err := w.sub.Subscribe(ctx, TopicPreferences)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicPreferences, err)
	}

	w.logger.Info().Msg("sync worker started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			w.handle(ctx, msg)
			msg.Ack()
		}
	}
}

// handle pushes one event to the remote mirror.
func (w *Worker) handle(ctx context.Context, msg *message.Message) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		w.logger.Error().Err(err).Str("message", msg.UUID).Msg("decode sync event")
		return
	}

	pushCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var err error
	if ev.Deleted {
		err = w.remote.DeletePreferences(pushCtx, ev.UserID)
	} else {
		err = w.remote.SavePreferences(pushCtx, ev.UserID, ev.Affinity)
	}

	if err != nil {
		metrics.SyncAttempts.WithLabelValues("error").Inc()
		w.logger.Warn().
			Err(err).
			Str("user", string(ev.UserID)).
			Bool("deleted", ev.Deleted).
			Msg("remote preference sync failed")
		return
	}

	metrics.SyncAttempts.WithLabelValues("ok").Inc()
	w.logger.Debug().
		Str("user", string(ev.UserID)).
		Bool("deleted", ev.Deleted).
		Msg("remote preferences synced")
}

var _ personalize.SyncPublisher = (*Publisher)(nil)
