package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/username/pinigine/backend/src/models"
	"github.com/username/pinigine/backend/src/utils"
)

type stubTransactionStore struct {
	mu        sync.Mutex
	created   []models.Transaction
	failDates map[string]bool
	onCreate  func()
}

func (s *stubTransactionStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	if s.onCreate != nil {
		s.onCreate()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDates[tx.Date.Format(utils.DefaultDateFormat)] {
		return errors.New("disk full")
	}
	s.created = append(s.created, *tx)
	return nil
}

func (s *stubTransactionStore) all() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Transaction, len(s.created))
	copy(out, s.created)
	return out
}

type stubWatermarkStore struct {
	mu      sync.Mutex
	history map[int64][]time.Time
	failAll bool
}

func newStubWatermarkStore() *stubWatermarkStore {
	return &stubWatermarkStore{history: make(map[int64][]time.Time)}
}

func (s *stubWatermarkStore) SetWatermark(ctx context.Context, definitionID int64, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("disk full")
	}
	s.history[definitionID] = append(s.history[definitionID], date)
	return nil
}

func (s *stubWatermarkStore) last(definitionID int64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[definitionID]
	if len(h) == 0 {
		return time.Time{}, false
	}
	return h[len(h)-1], true
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(utils.DefaultDateFormat, value)
	if err != nil {
		t.Fatalf("bad test date %q: %v", value, err)
	}
	return parsed.UTC()
}

func weeklyCoffee(id int64) models.RecurringTransaction {
	return models.RecurringTransaction{
		ID:          id,
		UserID:      1,
		Type:        models.TypeExpense,
		Amount:      5,
		Description: "Coffee",
		Category:    "maistas",
		Frequency:   models.FrequencyWeekly,
		Currency:    "EUR",
	}
}

func TestMaterializeWeeklyCatchUp(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	def := weeklyCoffee(7)
	def.StartDate = day(t, "2024-01-01")
	today := day(t, "2024-01-22")

	result := svc.Materialize(context.Background(), 1, []models.RecurringTransaction{def}, nil, today)

	if result.Created != 4 {
		t.Fatalf("Created = %d, want 4", result.Created)
	}
	wantDates := []string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22"}
	created := txStore.all()
	for i, want := range wantDates {
		if got := created[i].Date.Format(utils.DefaultDateFormat); got != want {
			t.Errorf("instance %d date = %s, want %s", i, got, want)
		}
		if created[i].SourceRecurringID == nil || *created[i].SourceRecurringID != 7 {
			t.Errorf("instance %d missing back-reference to definition", i)
		}
	}
	if wm, ok := wmStore.last(7); !ok || !utils.SameDay(wm, today) {
		t.Errorf("watermark = %v, want %s", wm, today)
	}
}

func TestMaterializeSecondPassCreatesNothing(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	def := weeklyCoffee(7)
	def.StartDate = day(t, "2024-01-01")
	defs := []models.RecurringTransaction{def}
	today := day(t, "2024-01-22")

	first := svc.Materialize(context.Background(), 1, defs, nil, today)
	if first.Created != 4 {
		t.Fatalf("first pass Created = %d, want 4", first.Created)
	}

	// The first pass advanced the watermark on defs[0] in place.
	second := svc.Materialize(context.Background(), 1, defs, txStore.all(), today)
	if second.Created != 0 || second.SkippedDuplicates != 0 {
		t.Errorf("second pass Created = %d, SkippedDuplicates = %d, want 0 and 0",
			second.Created, second.SkippedDuplicates)
	}
	if len(txStore.all()) != 4 {
		t.Errorf("total instances = %d, want 4", len(txStore.all()))
	}
}

func TestMaterializeSkipsManualDuplicate(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	def := weeklyCoffee(7)
	def.StartDate = day(t, "2024-01-01")
	today := day(t, "2024-01-22")

	manual := models.Transaction{
		UserID:      1,
		Type:        models.TypeExpense,
		Amount:      5,
		Description: "Coffee",
		Category:    "maistas",
		Date:        day(t, "2024-01-08"),
		Currency:    "EUR",
	}

	result := svc.Materialize(context.Background(), 1, []models.RecurringTransaction{def}, []models.Transaction{manual}, today)

	if result.Created != 3 {
		t.Errorf("Created = %d, want 3", result.Created)
	}
	if result.SkippedDuplicates != 1 {
		t.Errorf("SkippedDuplicates = %d, want 1", result.SkippedDuplicates)
	}
	if wm, ok := wmStore.last(7); !ok || !utils.SameDay(wm, today) {
		t.Errorf("watermark = %v, want %s", wm, today)
	}
}

func TestMaterializeResumesFromWatermark(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	def := weeklyCoffee(7)
	def.StartDate = day(t, "2024-01-01")
	wm := day(t, "2024-01-08")
	def.LastMaterialized = &wm
	today := day(t, "2024-01-22")

	result := svc.Materialize(context.Background(), 1, []models.RecurringTransaction{def}, nil, today)

	if result.Created != 2 {
		t.Fatalf("Created = %d, want 2", result.Created)
	}
	created := txStore.all()
	if got := created[0].Date.Format(utils.DefaultDateFormat); got != "2024-01-15" {
		t.Errorf("first resumed instance date = %s, want 2024-01-15", got)
	}
}

func TestMaterializeIterationCap(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	def := weeklyCoffee(3)
	def.Frequency = models.FrequencyDaily
	def.StartDate = day(t, "2021-01-01")
	defs := []models.RecurringTransaction{def}
	today := day(t, "2023-09-28") // ~1000 days behind

	first := svc.Materialize(context.Background(), 1, defs, nil, today)
	if first.Created != materializeIterationCap {
		t.Fatalf("first pass Created = %d, want %d", first.Created, materializeIterationCap)
	}
	wantWM := def.StartDate.AddDate(0, 0, materializeIterationCap-1)
	if wm, ok := wmStore.last(3); !ok || !utils.SameDay(wm, wantWM) {
		t.Errorf("watermark after capped pass = %v, want %s", wm, wantWM.Format(utils.DefaultDateFormat))
	}

	second := svc.Materialize(context.Background(), 1, defs, txStore.all(), today)
	if second.Created != materializeIterationCap {
		t.Errorf("second pass Created = %d, want %d", second.Created, materializeIterationCap)
	}
	if len(txStore.all()) != 2*materializeIterationCap {
		t.Errorf("total instances = %d, want %d", len(txStore.all()), 2*materializeIterationCap)
	}
}

func TestMaterializePartialFailureRetries(t *testing.T) {
	txStore := &stubTransactionStore{failDates: map[string]bool{"2024-01-15": true}}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	def := weeklyCoffee(7)
	def.StartDate = day(t, "2024-01-01")
	defs := []models.RecurringTransaction{def}
	today := day(t, "2024-01-22")

	first := svc.Materialize(context.Background(), 1, defs, nil, today)
	if first.Created != 2 {
		t.Fatalf("first pass Created = %d, want 2", first.Created)
	}
	if wm, ok := wmStore.last(7); !ok || !utils.SameDay(wm, day(t, "2024-01-08")) {
		t.Fatalf("watermark after failure = %v, want 2024-01-08", wm)
	}

	// Store recovers; next pass picks up exactly where the watermark stopped.
	txStore.mu.Lock()
	txStore.failDates = nil
	txStore.mu.Unlock()

	second := svc.Materialize(context.Background(), 1, defs, txStore.all(), today)
	if second.Created != 2 {
		t.Fatalf("second pass Created = %d, want 2", second.Created)
	}
	created := txStore.all()
	if got := created[2].Date.Format(utils.DefaultDateFormat); got != "2024-01-15" {
		t.Errorf("retried instance date = %s, want 2024-01-15", got)
	}
	if got := created[3].Date.Format(utils.DefaultDateFormat); got != "2024-01-22" {
		t.Errorf("final instance date = %s, want 2024-01-22", got)
	}
}

func TestMaterializeWatermarkMonotonic(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	def := weeklyCoffee(7)
	def.StartDate = day(t, "2024-01-01")
	defs := []models.RecurringTransaction{def}

	svc.Materialize(context.Background(), 1, defs, nil, day(t, "2024-01-22"))
	svc.Materialize(context.Background(), 1, defs, txStore.all(), day(t, "2024-02-05"))

	history := wmStore.history[7]
	if len(history) == 0 {
		t.Fatal("no watermark writes recorded")
	}
	for i := 1; i < len(history); i++ {
		if history[i].Before(history[i-1]) {
			t.Errorf("watermark regressed at write %d: %s after %s",
				i, history[i].Format(utils.DefaultDateFormat), history[i-1].Format(utils.DefaultDateFormat))
		}
	}
}

func TestMaterializeBoundaryDefinitions(t *testing.T) {
	past := day(t, "2024-01-10")
	tests := []struct {
		name string
		mod  func(*models.RecurringTransaction)
	}{
		{"end date in the past", func(def *models.RecurringTransaction) {
			def.StartDate = day(t, "2024-01-01")
			def.EndDate = &past
		}},
		{"start date in the future", func(def *models.RecurringTransaction) {
			def.StartDate = day(t, "2024-02-01")
		}},
		{"unknown frequency", func(def *models.RecurringTransaction) {
			def.StartDate = day(t, "2024-01-01")
			def.Frequency = models.Frequency("fortnightly")
		}},
	}

	today := day(t, "2024-01-22")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txStore := &stubTransactionStore{}
			wmStore := newStubWatermarkStore()
			svc := NewRecurringService(txStore, wmStore)

			def := weeklyCoffee(7)
			tt.mod(&def)

			result := svc.Materialize(context.Background(), 1, []models.RecurringTransaction{def}, nil, today)
			if result.Created != 0 || result.SkippedDuplicates != 0 {
				t.Errorf("Created = %d, SkippedDuplicates = %d, want 0 and 0",
					result.Created, result.SkippedDuplicates)
			}
			if len(txStore.all()) != 0 {
				t.Errorf("instances created = %d, want 0", len(txStore.all()))
			}
		})
	}
}

func TestMaterializeEndDateTodayStillRuns(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	today := day(t, "2024-01-22")
	def := weeklyCoffee(7)
	def.StartDate = day(t, "2024-01-15")
	def.EndDate = &today

	result := svc.Materialize(context.Background(), 1, []models.RecurringTransaction{def}, nil, today)
	if result.Created != 2 {
		t.Errorf("Created = %d, want 2", result.Created)
	}
}

func TestMaterializeOverlappingPassIsNoOp(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	txStore.onCreate = func() {
		once.Do(func() { close(started) })
		<-release
	}

	def := weeklyCoffee(7)
	def.StartDate = day(t, "2024-01-01")
	today := day(t, "2024-01-22")

	var wg sync.WaitGroup
	wg.Add(1)
	var first MaterializeResult
	go func() {
		defer wg.Done()
		first = svc.Materialize(context.Background(), 1, []models.RecurringTransaction{def}, nil, today)
	}()

	<-started
	overlap := svc.Materialize(context.Background(), 1, []models.RecurringTransaction{def}, nil, today)
	if overlap.Created != 0 || overlap.SkippedDuplicates != 0 {
		t.Errorf("overlapping pass Created = %d, SkippedDuplicates = %d, want 0 and 0",
			overlap.Created, overlap.SkippedDuplicates)
	}

	close(release)
	wg.Wait()

	if first.Created != 4 {
		t.Errorf("blocked pass Created = %d, want 4", first.Created)
	}
	if len(txStore.all()) != 4 {
		t.Errorf("total instances = %d, want 4", len(txStore.all()))
	}
}

func TestMaterializeOtherUserNotBlocked(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	svc := NewRecurringService(txStore, wmStore)

	if !svc.acquire(1) {
		t.Fatal("could not acquire user 1")
	}
	defer svc.release(1)

	def := weeklyCoffee(9)
	def.UserID = 2
	def.StartDate = day(t, "2024-01-22")

	result := svc.Materialize(context.Background(), 2, []models.RecurringTransaction{def}, nil, day(t, "2024-01-22"))
	if result.Created != 1 {
		t.Errorf("Created = %d, want 1; a pass for one user must not block another", result.Created)
	}
}

func TestMaterializeWatermarkWriteFailureDoesNotAbort(t *testing.T) {
	txStore := &stubTransactionStore{}
	wmStore := newStubWatermarkStore()
	wmStore.failAll = true
	svc := NewRecurringService(txStore, wmStore)

	def := weeklyCoffee(7)
	def.StartDate = day(t, "2024-01-01")
	today := day(t, "2024-01-22")

	result := svc.Materialize(context.Background(), 1, []models.RecurringTransaction{def}, nil, today)
	if result.Created != 4 {
		t.Errorf("Created = %d, want 4; watermark write failures only defer progress", result.Created)
	}
	if def.LastMaterialized != nil {
		t.Error("in-memory watermark advanced despite failed write")
	}
	if len(result.Watermarks) != 0 {
		t.Errorf("Watermarks has %d entries, want 0", len(result.Watermarks))
	}
}
