package persistence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/finance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestGormSequenceStore_SeedsFromStoredReferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	scope := testScope()
	revenues := NewGormRevenueRepository(db)

	// issued before the counter row existed
	for _, ref := range []string{"REC-025026-T0007-CM2", "REC-025026-I0030-CM2"} {
		require.NoError(t, revenues.Create(ctx, newTestRevenue(t, scope, finance.RevenueKindCanteen, 100, "2025-10-17", ref)))
	}

	store := NewGormSequenceStore(db)
	tuition := finance.SequenceKey{SchoolID: scope.SchoolID, YearCode: "025026", ClassCode: "CM2", Prefix: "T"}

	n, err := store.Next(ctx, tuition)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = store.Next(ctx, tuition)
	require.NoError(t, err)
	assert.Equal(t, 9, n)

	// unlettered references keep their own counter
	n, err = store.Next(ctx, finance.SequenceKey{SchoolID: scope.SchoolID, YearCode: "025026", ClassCode: "CM2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGormSequenceStore_ConcurrentIssuanceIsGapFree(t *testing.T) {
	db := newTestDB(t)
	store := NewGormSequenceStore(db)
	key := finance.SequenceKey{SchoolID: uuid.New(), YearCode: "025026", ClassCode: "CE1", Prefix: "S"}

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		got  []int
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.Next(context.Background(), key)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			got = append(got, n)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Ints(got)
	want := make([]int, workers)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, got)
}

func newMockSequenceStore(t *testing.T) (*GormSequenceStore, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormSequenceStore(gormDB), mock
}

func TestGormSequenceStore_LocksCounterRow(t *testing.T) {
	store, mock := newMockSequenceStore(t)
	key := finance.SequenceKey{SchoolID: uuid.New(), YearCode: "025026", ClassCode: "CM2", Prefix: "T"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "receipt_sequences" WHERE .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"school_id", "year_code", "class_code", "prefix", "last_value"}).
			AddRow(key.SchoolID, key.YearCode, key.ClassCode, key.Prefix, 41))
	mock.ExpectExec(`UPDATE "receipt_sequences" SET "last_value"=\$1,"updated_at"=\$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.Next(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSequenceStore_StorageFailure(t *testing.T) {
	store, mock := newMockSequenceStore(t)
	key := finance.SequenceKey{SchoolID: uuid.New(), YearCode: "025026", ClassCode: "CM2", Prefix: "T"}

	mock.ExpectBegin().WillReturnError(errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	_, err := store.Next(context.Background(), key)
	assert.ErrorIs(t, err, finance.ErrSequenceUnavailable)
}

func TestGormSequenceStore_CancelledContext(t *testing.T) {
	store, _ := newMockSequenceStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Next(ctx, finance.SequenceKey{SchoolID: uuid.New(), YearCode: "025026", ClassCode: "CM2"})
	assert.ErrorIs(t, err, context.Canceled)
}
