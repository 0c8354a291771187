package service

import (
	"testing"
	"time"

	"renthub/internal/apperr"
	"renthub/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name    string
		listing models.Listing
		want    int64
	}{
		{
			name:    "no discount",
			listing: models.Listing{Price: 1000},
			want:    1000,
		},
		{
			name:    "active discount applied",
			listing: models.Listing{Price: 1000, Discount: 25, IsDiscountActive: true},
			want:    750,
		},
		{
			name:    "inactive discount ignored",
			listing: models.Listing{Price: 1000, Discount: 25, IsDiscountActive: false},
			want:    1000,
		},
		{
			name:    "full discount",
			listing: models.Listing{Price: 1000, Discount: 100, IsDiscountActive: true},
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectivePrice(&tt.listing))
		})
	}
}

func TestValidateDiscountRange(t *testing.T) {
	assert.NoError(t, ValidateDiscount(0, time.Time{}, time.Time{}))
	assert.NoError(t, ValidateDiscount(100, time.Time{}, time.Time{}))

	err := ValidateDiscount(150, time.Time{}, time.Time{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = ValidateDiscount(-1, time.Time{}, time.Time{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestValidateDiscountWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	assert.NoError(t, ValidateDiscount(10, start, end))
	assert.NoError(t, ValidateDiscount(10, start, start))

	err := ValidateDiscount(10, end, start)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// An open-ended window is fine either way.
	assert.NoError(t, ValidateDiscount(10, start, time.Time{}))
	assert.NoError(t, ValidateDiscount(10, time.Time{}, end))
}
