package cartstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAtThreshold(t *testing.T) {
	b := newBreaker(3)

	_, tripped := b.Failure()
	require.False(t, tripped)
	_, tripped = b.Failure()
	require.False(t, tripped)
	require.False(t, b.Open())

	n, tripped := b.Failure()
	require.True(t, tripped)
	require.EqualValues(t, 3, n)
	require.True(t, b.Open())

	// latched: later failures do not report a new trip, successes do not close it
	_, tripped = b.Failure()
	require.False(t, tripped)
	b.Success()
	require.True(t, b.Open())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := newBreaker(3)

	b.Failure()
	b.Failure()
	b.Success()
	b.Failure()
	n, _ := b.Failure()

	require.EqualValues(t, 2, n)
	require.False(t, b.Open())
}

func TestBreakerDefaultThreshold(t *testing.T) {
	require.EqualValues(t, DefaultFailureThreshold, newBreaker(0).threshold)
}
