package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/username/pinigine/backend/src/logger"
	"github.com/username/pinigine/backend/src/models"
	"github.com/username/pinigine/backend/src/utils"
)

// materializeIterationCap bounds the catch-up loop per definition. A
// definition further behind than this is caught up incrementally over
// successive passes instead of in one unbounded run.
const materializeIterationCap = 100

// TransactionStore persists materialized transaction instances.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
}

// WatermarkStore persists the per-definition date of the most recently
// materialized occurrence.
type WatermarkStore interface {
	SetWatermark(ctx context.Context, definitionID int64, date time.Time) error
}

// MaterializeResult reports what a single materialization pass did.
type MaterializeResult struct {
	Created           int                 `json:"created"`
	SkippedDuplicates int                 `json:"skipped_duplicates"`
	Watermarks        map[int64]time.Time `json:"-"`
}

// RecurringService materializes due occurrences of recurring definitions
// into concrete transactions. It holds no durable state of its own; the
// watermark on each definition row is the sole progress marker.
type RecurringService struct {
	transactions TransactionStore
	watermarks   WatermarkStore

	mu       sync.Mutex
	inFlight map[int64]bool // userID -> pass running
}

func NewRecurringService(transactions TransactionStore, watermarks WatermarkStore) *RecurringService {
	return &RecurringService{
		transactions: transactions,
		watermarks:   watermarks,
		inFlight:     make(map[int64]bool),
	}
}

// occurrenceKey is the duplicate-detection tuple: an instance with the same
// type, amount, description, category and calendar date as a candidate
// occurrence counts as already materialized.
type occurrenceKey struct {
	txType      models.TransactionType
	amount      float64
	description string
	category    string
	date        string
}

func keyFor(txType models.TransactionType, amount float64, description, category string, date time.Time) occurrenceKey {
	return occurrenceKey{
		txType:      txType,
		amount:      amount,
		description: description,
		category:    category,
		date:        utils.Midnight(date).Format(utils.DefaultDateFormat),
	}
}

// Materialize ensures every due occurrence of the given definitions exists as
// a transaction, without duplicating instances already present in existing.
// existing must contain (at minimum) all of the owner's transactions.
//
// An overlapping call for the same owner is a silent no-op. A failure to
// persist one instance ends the pass for that definition only; because its
// watermark was not advanced, the occurrence is retried on the next pass.
func (s *RecurringService) Materialize(ctx context.Context, userID int64, definitions []models.RecurringTransaction, existing []models.Transaction, today time.Time) MaterializeResult {
	result := MaterializeResult{Watermarks: make(map[int64]time.Time)}

	if !s.acquire(userID) {
		if logger.L != nil {
			logger.L.Debug("Materialization already in flight, skipping pass", "userID", userID)
		}
		return result
	}
	defer s.release(userID)

	todayDay := utils.Midnight(today)

	seen := make(map[occurrenceKey]bool, len(existing))
	for _, tx := range existing {
		seen[keyFor(tx.Type, tx.Amount, tx.Description, tx.Category, tx.Date)] = true
	}

	for i := range definitions {
		def := &definitions[i]
		if def.EndDate != nil && utils.Midnight(*def.EndDate).Before(todayDay) {
			continue
		}
		startDay := utils.Midnight(def.StartDate)
		if startDay.After(todayDay) {
			continue
		}

		cursor := startDay
		if def.LastMaterialized != nil {
			next, err := utils.NextOccurrence(utils.Midnight(*def.LastMaterialized), string(def.Frequency))
			if err != nil {
				if logger.L != nil {
					logger.L.Warn("Skipping recurring definition with unknown frequency",
						"definitionID", def.ID, "frequency", def.Frequency)
				}
				continue
			}
			cursor = next
		} else if !models.ValidFrequency(string(def.Frequency)) {
			if logger.L != nil {
				logger.L.Warn("Skipping recurring definition with unknown frequency",
					"definitionID", def.ID, "frequency", def.Frequency)
			}
			continue
		}

		for iter := 0; iter < materializeIterationCap; iter++ {
			cursorDay := utils.Midnight(cursor)
			if cursorDay.After(todayDay) {
				break
			}
			if def.EndDate != nil && utils.Midnight(*def.EndDate).Before(cursorDay) {
				break
			}

			key := keyFor(def.Type, def.Amount, def.Description, def.Category, cursorDay)
			if seen[key] {
				// Already recorded (manually or by an earlier pass); advance
				// the watermark so this occurrence is not re-examined.
				result.SkippedDuplicates++
				s.advanceWatermark(ctx, def, cursorDay, &result)
			} else {
				defID := def.ID
				instance := &models.Transaction{
					UserID:            userID,
					Type:              def.Type,
					Amount:            def.Amount,
					Description:       def.Description,
					Category:          def.Category,
					Date:              cursorDay,
					Currency:          def.Currency,
					SourceRecurringID: &defID,
				}
				if err := s.transactions.CreateTransaction(ctx, instance); err != nil {
					// Watermark untouched: this occurrence, and the rest of
					// this definition's backlog, is retried next pass.
					if logger.L != nil {
						logger.L.Warn("Failed to persist materialized occurrence, deferring definition",
							"definitionID", def.ID, "date", cursorDay.Format(utils.DefaultDateFormat), "error", err)
					}
					break
				}
				seen[key] = true
				result.Created++
				s.advanceWatermark(ctx, def, cursorDay, &result)
			}

			next, err := utils.NextOccurrence(cursorDay, string(def.Frequency))
			if err != nil {
				if logger.L != nil {
					logger.L.Warn("Skipping recurring definition with unknown frequency",
						"definitionID", def.ID, "frequency", def.Frequency)
				}
				break
			}
			cursor = next
		}
	}

	return result
}

func (s *RecurringService) advanceWatermark(ctx context.Context, def *models.RecurringTransaction, date time.Time, result *MaterializeResult) {
	if err := s.watermarks.SetWatermark(ctx, def.ID, date); err != nil {
		// The instance (if any) was persisted; the stale watermark only means
		// the occurrence is re-examined, and skipped, on the next pass.
		if logger.L != nil {
			logger.L.Warn("Failed to persist watermark",
				"definitionID", def.ID, "date", date.Format(utils.DefaultDateFormat), "error", err)
		}
		return
	}
	d := date
	def.LastMaterialized = &d
	result.Watermarks[def.ID] = date
}

func (s *RecurringService) acquire(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[userID] {
		return false
	}
	s.inFlight[userID] = true
	return true
}

func (s *RecurringService) release(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, userID)
}

// sqlTransactionStore and sqlWatermarkStore back the materializer with the
// application database.
type sqlTransactionStore struct{ db *sql.DB }

func (s sqlTransactionStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	return models.CreateTransaction(s.db, tx)
}

type sqlWatermarkStore struct{ db *sql.DB }

func (s sqlWatermarkStore) SetWatermark(ctx context.Context, definitionID int64, date time.Time) error {
	return models.SetRecurringWatermark(s.db, definitionID, date)
}

// NewSQLStores returns database-backed stores for the materializer.
func NewSQLStores(db *sql.DB) (TransactionStore, WatermarkStore) {
	return sqlTransactionStore{db: db}, sqlWatermarkStore{db: db}
}
