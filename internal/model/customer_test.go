package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestCustomerRecordPurchase(t *testing.T) {
	now := time.Now().UTC()

	t.Run("first purchase", func(t *testing.T) {
		c := &Customer{}
		require.NoError(t, c.RecordPurchase(mustDate(t, "2024-03-01"), 120, now))

		assert.Equal(t, 1, c.PurchaseCount)
		assert.Equal(t, 120.0, c.TotalSpent)
		assert.Equal(t, 120.0, c.AveragePurchaseValue)
		assert.Equal(t, 120.0, c.LifetimeValue)
		assert.Nil(t, c.PurchaseFrequencyDays)
		assert.Equal(t, "2024-03-01", c.FirstPurchaseDate.String())
		assert.Equal(t, "2024-03-01", c.LastPurchaseDate.String())
		require.NotNil(t, c.SegmentUpdatedAt)
	})

	t.Run("frequency blends", func(t *testing.T) {
		c := &Customer{}
		require.NoError(t, c.RecordPurchase(mustDate(t, "2024-03-01"), 100, now))
		require.NoError(t, c.RecordPurchase(mustDate(t, "2024-03-11"), 50, now))

		require.NotNil(t, c.PurchaseFrequencyDays)
		assert.Equal(t, 10.0, *c.PurchaseFrequencyDays)
		assert.Equal(t, 2, c.PurchaseCount)
		assert.Equal(t, 75.0, c.AveragePurchaseValue)

		require.NoError(t, c.RecordPurchase(mustDate(t, "2024-03-31"), 30, now))
		assert.InDelta(t, 13.0, *c.PurchaseFrequencyDays, 1e-9)
		assert.Equal(t, "2024-03-01", c.FirstPurchaseDate.String())
		assert.Equal(t, "2024-03-31", c.LastPurchaseDate.String())
	})

	t.Run("backdated purchase keeps latest date", func(t *testing.T) {
		c := &Customer{}
		require.NoError(t, c.RecordPurchase(mustDate(t, "2024-03-01"), 100, now))
		require.NoError(t, c.RecordPurchase(mustDate(t, "2024-03-11"), 50, now))
		require.NoError(t, c.RecordPurchase(mustDate(t, "2024-02-20"), 30, now))

		assert.Equal(t, 3, c.PurchaseCount)
		assert.Equal(t, 180.0, c.TotalSpent)
		assert.Equal(t, 60.0, c.AveragePurchaseValue)
		require.NotNil(t, c.PurchaseFrequencyDays)
		assert.Equal(t, 10.0, *c.PurchaseFrequencyDays)
		assert.Equal(t, "2024-02-20", c.FirstPurchaseDate.String())
		assert.Equal(t, "2024-03-11", c.LastPurchaseDate.String())
	})

	t.Run("same day purchase has zero gap", func(t *testing.T) {
		c := &Customer{}
		require.NoError(t, c.RecordPurchase(mustDate(t, "2024-03-01"), 10, now))
		require.NoError(t, c.RecordPurchase(mustDate(t, "2024-03-01"), 10, now))

		require.NotNil(t, c.PurchaseFrequencyDays)
		assert.Equal(t, 0.0, *c.PurchaseFrequencyDays)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		c := &Customer{}
		assert.ErrorIs(t, c.RecordPurchase(mustDate(t, "2024-03-01"), 0, now), ErrNonPositiveAmount)
		assert.Equal(t, 0, c.PurchaseCount)
	})
}

func TestDateDaysSince(t *testing.T) {
	assert.Equal(t, 10, mustDate(t, "2024-01-11").DaysSince(mustDate(t, "2024-01-01")))
	assert.Equal(t, 1, mustDate(t, "2024-03-01").DaysSince(mustDate(t, "2024-02-29")))
	assert.Equal(t, -5, mustDate(t, "2024-01-01").DaysSince(mustDate(t, "2024-01-06")))

	late := NewDate(time.Date(2024, 1, 11, 23, 59, 0, 0, time.UTC))
	early := NewDate(time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC))
	assert.Equal(t, 10, late.DaysSince(early))
}

func TestDateJSON(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2024-02-29"`)))
	assert.Equal(t, "2024-02-29", d.String())

	b, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-29"`, string(b))

	assert.Error(t, d.UnmarshalJSON([]byte(`"29/02/2024"`)))
}
