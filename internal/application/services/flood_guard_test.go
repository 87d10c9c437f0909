package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapursambal/storefront/pkg/errors"
)

func TestFloodGuard_SlidingWindow(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g := NewFloodGuard(2, time.Minute)
	g.now = func() time.Time { return clock }

	require.NoError(t, g.Check("1.2.3.4"))
	clock = clock.Add(10 * time.Second)
	require.NoError(t, g.Check("1.2.3.4"))

	err := g.Check("1.2.3.4")
	require.Error(t, err)
	assert.True(t, errors.IsRateLimited(err))

	var rl *errors.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 50*time.Second, rl.RetryAfter)

	// other clients are unaffected
	assert.NoError(t, g.Check("5.6.7.8"))

	// first hit leaves the window
	clock = clock.Add(51 * time.Second)
	assert.NoError(t, g.Check("1.2.3.4"))
}
