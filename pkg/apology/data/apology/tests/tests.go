package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apologystake/stake-server/pkg/apology/data/apology"
	"github.com/apologystake/stake-server/pkg/database/query"
	"github.com/apologystake/stake-server/pkg/solana/apologystake"
)

func RunTests(t *testing.T, s apology.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s apology.Store){
		testHappyPath,
		testStaleUpdates,
		testGetAllByParty,
		testQueryOptions,
		testCountByStatus,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s apology.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		start := time.Now()
		ctx := context.Background()

		expected := newRecord("offender", "victim", 0)
		cloned := expected.Clone()

		_, err := s.GetByAddress(ctx, expected.Address)
		assert.Equal(t, apology.ErrApologyNotFound, err)

		require.NoError(t, s.Save(ctx, expected))
		assert.True(t, expected.Id > 0)
		assert.True(t, expected.LastUpdatedAt.After(start))

		actual, err := s.GetByAddress(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)

		expected.Status = apologystake.ApologyStatusCompleted
		expected.Resolution = apologystake.ResolutionClaimed
		expected.Slot += 10
		cloned = expected.Clone()

		require.NoError(t, s.Save(ctx, expected))

		actual, err = s.GetByAddress(ctx, expected.Address)
		require.NoError(t, err)
		assertEquivalentRecords(t, cloned, actual)
		assert.Equal(t, expected.Id, actual.Id)
	})
}

func testStaleUpdates(t *testing.T, s apology.Store) {
	t.Run("testStaleUpdates", func(t *testing.T) {
		ctx := context.Background()

		record := newRecord("offender", "victim", 0)
		require.NoError(t, s.Save(ctx, record))

		stale := record.Clone()
		stale.Status = apologystake.ApologyStatusCompleted
		stale.Resolution = apologystake.ResolutionReleased
		assert.Equal(t, apology.ErrStaleState, s.Save(ctx, stale))

		stale.Slot--
		assert.Equal(t, apology.ErrStaleState, s.Save(ctx, stale))

		actual, err := s.GetByAddress(ctx, record.Address)
		require.NoError(t, err)
		assert.Equal(t, apologystake.ApologyStatusActive, actual.Status)
		assert.Equal(t, apologystake.ResolutionNone, actual.Resolution)

		invalid := record.Clone()
		invalid.Message = ""
		assert.ErrorIs(t, s.Save(ctx, invalid), apology.ErrInvalidApology)
	})
}

func testGetAllByParty(t *testing.T, s apology.Store) {
	t.Run("testGetAllByParty", func(t *testing.T) {
		ctx := context.Background()

		var records []*apology.Record
		for i := 0; i < 5; i++ {
			record := newRecord("offender", "victim", int64(i))
			if i%2 == 1 {
				record.Status = apologystake.ApologyStatusCompleted
				record.Resolution = apologystake.ResolutionReleased
			}
			require.NoError(t, s.Save(ctx, record))
			records = append(records, record)
		}
		require.NoError(t, s.Save(ctx, newRecord("someone_else", "victim", 0)))

		_, err := s.GetAllByOffender(ctx, "unknown")
		assert.Equal(t, apology.ErrApologyNotFound, err)
		_, err = s.GetAllByVictim(ctx, "unknown")
		assert.Equal(t, apology.ErrApologyNotFound, err)

		actual, err := s.GetAllByOffender(ctx, "offender")
		require.NoError(t, err)
		require.Len(t, actual, len(records))
		for i, record := range records {
			assertEquivalentRecords(t, record, actual[i])
		}

		actual, err = s.GetAllByVictim(ctx, "victim")
		require.NoError(t, err)
		assert.Len(t, actual, len(records)+1)

		actual, err = s.GetAllByOffender(ctx, "offender", apology.WithStatus(apologystake.ApologyStatusActive))
		require.NoError(t, err)
		require.Len(t, actual, 3)
		for _, record := range actual {
			assert.Equal(t, apologystake.ApologyStatusActive, record.Status)
		}

		actual, err = s.GetAllByVictim(ctx, "victim", apology.WithStatus(apologystake.ApologyStatusCompleted))
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, records[1], actual[0])
		assertEquivalentRecords(t, records[3], actual[1])

		actual, err = s.GetAllByOffender(ctx, "offender", query.WithDirection(query.Descending))
		require.NoError(t, err)
		require.Len(t, actual, len(records))
		for i := range actual {
			assertEquivalentRecords(t, records[len(records)-1-i], actual[i])
		}

		actual, err = s.GetAllByOffender(ctx, "offender", query.WithLimit(2))
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, records[0], actual[0])
		assertEquivalentRecords(t, records[1], actual[1])

		actual, err = s.GetAllByOffender(ctx, "offender", query.WithLimit(2), query.WithCursor(query.ToCursor(actual[1].Id)))
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, records[2], actual[0])
		assertEquivalentRecords(t, records[3], actual[1])

		actual, err = s.GetAllByOffender(
			ctx,
			"offender",
			query.WithDirection(query.Descending),
			query.WithCursor(query.ToCursor(records[2].Id)),
		)
		require.NoError(t, err)
		require.Len(t, actual, 2)
		assertEquivalentRecords(t, records[1], actual[0])
		assertEquivalentRecords(t, records[0], actual[1])

		_, err = s.GetAllByOffender(ctx, "offender", query.WithCursor(query.ToCursor(records[4].Id)))
		assert.Equal(t, apology.ErrApologyNotFound, err)
	})
}

func testQueryOptions(t *testing.T, s apology.Store) {
	t.Run("testQueryOptions", func(t *testing.T) {
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, newRecord("offender", "victim", 0)))

		for _, opts := range [][]query.Option{
			{query.WithLimit(0)},
			{query.WithLimit(apology.MaxPageSize + 1)},
			{query.WithCursor([]byte{1, 2, 3})},
			{query.WithFilter(query.NewFilter(2))},
		} {
			_, err := s.GetAllByOffender(ctx, "offender", opts...)
			assert.Equal(t, query.ErrQueryNotSupported, err)
		}
	})
}

func testCountByStatus(t *testing.T, s apology.Store) {
	t.Run("testCountByStatus", func(t *testing.T) {
		ctx := context.Background()

		for _, status := range []apologystake.ApologyStatus{apologystake.ApologyStatusActive, apologystake.ApologyStatusCompleted} {
			count, err := s.CountByStatus(ctx, status)
			require.NoError(t, err)
			assert.EqualValues(t, 0, count)
		}

		for i := 0; i < 3; i++ {
			require.NoError(t, s.Save(ctx, newRecord("offender", "victim", int64(i))))
		}

		completed := newRecord("offender", "victim", 3)
		require.NoError(t, s.Save(ctx, completed))
		completed.Status = apologystake.ApologyStatusCompleted
		completed.Resolution = apologystake.ResolutionClaimed
		completed.Slot++
		require.NoError(t, s.Save(ctx, completed))

		count, err := s.CountByStatus(ctx, apologystake.ApologyStatusActive)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)

		count, err = s.CountByStatus(ctx, apologystake.ApologyStatusCompleted)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func newRecord(offender, victim string, nonce int64) *apology.Record {
	createdAt := time.Unix(1_700_000_000, 0).UTC()
	return &apology.Record{
		Address:      fmt.Sprintf("apology_%s_%s_%d", offender, victim, nonce),
		VaultAddress: fmt.Sprintf("vault_%s_%s_%d", offender, victim, nonce),

		Offender: offender,
		Victim:   victim,
		Nonce:    nonce,

		StakeAmount:  1_000_000,
		Message:      "sorry about the thing",
		VictimHandle: "@victim",

		Status:     apologystake.ApologyStatusActive,
		Resolution: apologystake.ResolutionNone,

		CreatedAt:    createdAt,
		ProbationEnd: createdAt.Add(7 * 24 * time.Hour),

		Slot: 100,
	}
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *apology.Record) {
	assert.Equal(t, obj1.Address, obj2.Address)
	assert.Equal(t, obj1.VaultAddress, obj2.VaultAddress)
	assert.Equal(t, obj1.Offender, obj2.Offender)
	assert.Equal(t, obj1.Victim, obj2.Victim)
	assert.Equal(t, obj1.Nonce, obj2.Nonce)
	assert.Equal(t, obj1.StakeAmount, obj2.StakeAmount)
	assert.Equal(t, obj1.Message, obj2.Message)
	assert.Equal(t, obj1.VictimHandle, obj2.VictimHandle)
	assert.Equal(t, obj1.Status, obj2.Status)
	assert.Equal(t, obj1.Resolution, obj2.Resolution)
	assert.Equal(t, obj1.CreatedAt.Unix(), obj2.CreatedAt.Unix())
	assert.Equal(t, obj1.ProbationEnd.Unix(), obj2.ProbationEnd.Unix())
	assert.Equal(t, obj1.Slot, obj2.Slot)
}
