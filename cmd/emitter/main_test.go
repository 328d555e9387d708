package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickInterval(t *testing.T) {
	d, err := tickInterval(10)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, d)

	d, err = tickInterval(1)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}

func TestTickIntervalRejectsNonPositiveRates(t *testing.T) {
	for _, rate := range []int{0, -1, -100} {
		_, err := tickInterval(rate)
		assert.Error(t, err, "rate %d", rate)
	}
}
