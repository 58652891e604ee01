package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return 1
}

func TestCacheSweepRuns(t *testing.T) {
	s := New()
	sw := &countingSweeper{}
	require.NoError(t, s.AddCacheSweep("* * * * * *", sw))
	assert.Equal(t, 1, s.Jobs())

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return sw.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestAddCacheSweepSpecs(t *testing.T) {
	s := New()
	require.NoError(t, s.AddCacheSweep("", &countingSweeper{}))
	assert.Equal(t, 0, s.Jobs())

	assert.Error(t, s.AddCacheSweep("not a spec", &countingSweeper{}))
}
