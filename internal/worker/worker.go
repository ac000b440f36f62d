// Package worker runs background tasks over asynq: search index
// maintenance for marketplace listings.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/hiramGL/CriolloListApp/internal/metrics"
	"github.com/hiramGL/CriolloListApp/internal/models"
	"github.com/hiramGL/CriolloListApp/internal/store"
)

// Worker consumes the task queue and keeps the redis search index in sync
// with the database.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux

	db     store.DataStore
	redis  *store.RedisStore
	logger zerolog.Logger
}

// New creates a Worker backed by the given redis URL.
func New(redisURL string, db store.DataStore, redisStore *store.RedisStore, logger zerolog.Logger) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("worker: parse redis URL: %w", err)
	}

	w := &Worker{
		db:     db,
		redis:  redisStore,
		logger: logger,
	}

	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task_type", task.Type()).Msg("task failed")
		}),
	})

	w.mux = asynq.NewServeMux()
	w.mux.HandleFunc(TypeServiceIndex, w.handleServiceIndex)
	w.mux.HandleFunc(TypeServiceDeindex, w.handleServiceDeindex)

	return w, nil
}

// Start launches the task server in the background.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Shutdown drains in-flight tasks and stops the server.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleServiceIndex(ctx context.Context, t *asynq.Task) error {
	var payload ServiceIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		metrics.IndexTasksProcessed.WithLabelValues("invalid").Inc()
		return fmt.Errorf("worker: unmarshal %s payload: %w: %w", t.Type(), err, asynq.SkipRetry)
	}

	svc, err := w.db.GetService(ctx, payload.ServiceID)
	if err != nil {
		metrics.IndexTasksProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("worker: load service %s: %w", payload.ServiceID, err)
	}
	if svc == nil {
		// Deleted before the task ran; nothing to index.
		metrics.IndexTasksProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	if err := w.redis.IndexService(ctx, svc); err != nil {
		metrics.IndexTasksProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("worker: index service %s: %w", payload.ServiceID, err)
	}

	metrics.IndexTasksProcessed.WithLabelValues("ok").Inc()
	w.logger.Debug().Str("service_id", payload.ServiceID.String()).Msg("service indexed")
	return nil
}

func (w *Worker) handleServiceDeindex(ctx context.Context, t *asynq.Task) error {
	var payload ServiceDeindexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		metrics.IndexTasksProcessed.WithLabelValues("invalid").Inc()
		return fmt.Errorf("worker: unmarshal %s payload: %w: %w", t.Type(), err, asynq.SkipRetry)
	}

	svc := &models.Service{
		ID:          payload.ServiceID,
		Title:       payload.Title,
		Description: payload.Description,
	}
	if err := w.redis.RemoveServiceFromIndex(ctx, svc); err != nil {
		metrics.IndexTasksProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("worker: deindex service %s: %w", payload.ServiceID, err)
	}

	metrics.IndexTasksProcessed.WithLabelValues("ok").Inc()
	return nil
}
