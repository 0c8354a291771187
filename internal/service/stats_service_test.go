package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrowthPercent(t *testing.T) {
	assert.Equal(t, 0.0, GrowthPercent(0, 0))
	assert.Equal(t, 100.0, GrowthPercent(50, 0))
	assert.Equal(t, 100.0, GrowthPercent(200, 100))
	assert.Equal(t, -50.0, GrowthPercent(50, 100))
	assert.Equal(t, 0.0, GrowthPercent(100, 100))
}
