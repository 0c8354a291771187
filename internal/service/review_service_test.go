package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextRatingFirstReview(t *testing.T) {
	score, count := NextRating(0, 0, 4)
	assert.Equal(t, 4.0, score)
	assert.Equal(t, int64(1), count)
}

func TestNextRatingFoldsIntoAggregate(t *testing.T) {
	score, count := NextRating(4.0, 3, 2)
	assert.InDelta(t, 3.5, score, 0.0001)
	assert.Equal(t, int64(4), count)
}
