package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/clip-backend/internal/usecase"
	"github.com/DRSN-tech/clip-backend/pkg/e"
	"github.com/DRSN-tech/clip-backend/pkg/jitter"
	"github.com/DRSN-tech/clip-backend/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const (
	outboxChannel     = "outbox_pending"
	defaultBatchSize  = 10
	defaultPollPeriod = time.Minute
	defaultStaleAfter = 5 * time.Minute
)

type OutboxWorker struct {
	repo       usecase.OutboxRepository
	logger     logger.Logger
	producer   usecase.MessageProducer
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	dbConnStr  string
	batchSize  int
	pollPeriod time.Duration
	staleAfter time.Duration
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	dbConnStr string,
) *OutboxWorker {
	return &OutboxWorker{
		repo:       repo,
		logger:     logger,
		producer:   producer,
		stop:       make(chan struct{}),
		dbConnStr:  dbConnStr,
		batchSize:  defaultBatchSize,
		pollPeriod: defaultPollPeriod,
		staleAfter: defaultStaleAfter,
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	// Запускаем слушатель уведомлений
	go func() {
		defer w.wg.Done()
		w.listenOutboxNotifications(ctx)
	}()
}

// Stop останавливает воркер и ждёт завершения горутин. Повторный вызов безопасен.
func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

// run разбирает накопившиеся события при старте, затем периодически
// возвращает зависшие события в очередь и повторяет отправку.
func (w *OutboxWorker) run(ctx context.Context) {
	w.logger.Infof("Draining pending outbox events on startup...")
	w.resetStale(ctx)
	w.drain(ctx)

	ticker := time.NewTicker(w.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infof("Worker stopped by context cancellation")
			return
		case <-w.stop:
			w.logger.Infof("Worker stopped")
			return
		case <-ticker.C:
			w.resetStale(ctx)
			w.drain(ctx)
		}
	}
}

func (w *OutboxWorker) resetStale(ctx context.Context) {
	n, err := w.repo.ResetStale(ctx, w.staleAfter)
	if err != nil {
		w.logger.Warnf("reset stale outbox events failed: %v", err)
		return
	}
	if n > 0 {
		w.logger.Infof("Returned %d stale outbox events to pending", n)
	}
}

func (w *OutboxWorker) drain(ctx context.Context) {
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Warnf("Batch processing failed: %v", err)
			return
		}
		if !hasMore {
			return
		}
	}
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn

	connect := func() error {
		var err error
		conn, err = pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err = conn.Exec(ctx, "LISTEN "+outboxChannel); err != nil {
			conn.Close(ctx)
			conn = nil
			return e.Wrap("failed to LISTEN", err)
		}

		w.logger.Infof("Subscribed to '%s' channel", outboxChannel)
		return nil
	}

	// Отменяем ожидание уведомления при Stop
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for attempt := 0; ; attempt++ {
		err := connect()
		if err == nil {
			break
		}
		w.logger.Warnf("Connect for LISTEN failed: %v", err)
		if jitter.Sleep(ctx, jitter.ExponentialBackoff(time.Second, 30*time.Second, attempt, jitter.DefaultJitter)) != nil {
			return
		}
	}
	defer func() {
		if conn != nil {
			conn.Close(context.Background())
		}
	}()

	for attempt := 0; ; {
		if ctx.Err() != nil {
			return
		}

		waitCtx, waitCancel := context.WithTimeout(ctx, 30*time.Second)
		notif, err := conn.WaitForNotification(waitCtx)
		waitCancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
			conn.Close(ctx)
			conn = nil

			for conn == nil {
				if jitter.Sleep(ctx, jitter.ExponentialBackoff(time.Second, 30*time.Second, attempt, jitter.DefaultJitter)) != nil {
					return
				}
				attempt++
				if err := connect(); err != nil {
					w.logger.Warnf("Reconnect failed: %v", err)
				}
			}
			attempt = 0
			continue
		}

		if notif != nil && notif.Channel == outboxChannel {
			w.logger.Debugf("Received outbox notification, draining outbox events")
			w.drain(ctx)
		}
	}
}

// processBatch отправляет одну пачку событий. Неотправленные события остаются
// в processing до ResetStale.
func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, w.batchSize)
	if err != nil {
		return false, err
	}

	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			w.logger.Warnf("event %s: %v", event.EventID, err)
			continue
		}
		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
		}
	}

	return len(events) == w.batchSize, nil
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *usecase.OutboxEvent) error {
	err := w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(event.AggregateID, event.Payload))
	if err == nil {
		return nil
	}

	if isRetryableError(err) {
		return e.Wrap("Temporary Kafka failure, will retry", err)
	}
	return e.Wrap("Permanent Kafka failure", err)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
