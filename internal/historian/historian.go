// internal/historian/historian.go
//
// The historian drains committed move records from the Redis ledger queue
// and batch-persists them into the moves table. It runs as its own process
// so a ledger backlog never slows down the turn path; redelivery is safe
// because the insert is idempotent on (game_id, seq).
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/playgrid/arcade/internal/cache"
	"github.com/playgrid/arcade/internal/database"
	"github.com/playgrid/arcade/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service encapsulates the Redis + DB logic for the ledger drain.
type Service struct {
	redisClient *redis.Client
	logger      *logrus.Logger
	queueName   string
	batchSize   int
	flushDelay  time.Duration

	batchMu  sync.Mutex
	batch    []models.MoveRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewService constructs a Service from environment variables or defaults:
// LEDGER_BATCH_SIZE (20), LEDGER_FLUSH_MS (500), REDIS_ADDR, LEDGER_QUEUE_NAME.
func NewService(logger *logrus.Logger) *Service {
	batchSize := cache.GetEnvInt("LEDGER_BATCH_SIZE", 20)
	flushMs := cache.GetEnvInt("LEDGER_FLUSH_MS", 500)

	rdb := redis.NewClient(&redis.Options{
		Addr: cache.GetEnv("REDIS_ADDR", "localhost:6379"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		redisClient: rdb,
		logger:      logger,
		queueName:   cache.GetEnv("LEDGER_QUEUE_NAME", cache.DefaultQueueName),
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		batch:       make([]models.MoveRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run blocks, reading from the queue and flushing batches, until Stop.
func (s *Service) Run() {
	go s.readQueueLoop()
	s.logger.Info("arcade-historian service started")
	<-s.ctx.Done()
	s.flushBatch()
	s.logger.Info("arcade-historian shutting down")
}

// Stop gracefully stops the service; the current batch is flushed.
func (s *Service) Stop() {
	s.cancelFn()
}

// readQueueLoop continuously uses BLPop to retrieve move records, flushing
// the batch whenever it fills or the flush delay elapses.
func (s *Service) readQueueLoop() {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.flushBatch()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := s.redisClient.BLPop(s.ctx, 3*time.Second, s.queueName).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && s.ctx.Err() == nil {
					s.logger.Errorf("BLPop: %v", err)
				}
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name, res[1] the payload.
			var record models.MoveRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				s.logger.Warnf("invalid move record: %v", err)
				continue
			}
			s.appendToBatch(record)
		}
	}
}

func (s *Service) appendToBatch(record models.MoveRecord) {
	s.batchMu.Lock()
	full := false
	s.batch = append(s.batch, record)
	full = len(s.batch) >= s.batchSize
	s.batchMu.Unlock()
	if full {
		s.flushBatch()
	}
}

// flushBatch persists the current batch in a single transaction.
func (s *Service) flushBatch() {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	batchCopy := make([]models.MoveRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := database.InsertMoveRecords(ctx, batchCopy); err != nil {
		s.logger.Errorf("flushBatch: %v", err)
		return
	}
	s.logger.Debugf("flushed %d move records", len(batchCopy))
}
