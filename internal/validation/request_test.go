package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCoordinates(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		lat, lng float64
		wantErr  bool
	}{
		{"Valid", 55.7558, 37.6173, false},
		{"Southern Hemisphere", -33.8688, 151.2093, false},
		{"Lat Too High", 90.01, 0.5, true},
		{"Lat Too Low", -90.01, 0.5, true},
		{"Lng Too High", 0.5, 180.01, true},
		{"Lng Too Low", 0.5, -180.01, true},
		{"Null Island", 0, 0, true},
		{"Zero Lat Only", 0, 37.6173, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinates(tt.lat, tt.lng)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePhone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		phone   string
		wantErr bool
	}{
		{"Empty Is Optional", "", false},
		{"International", "+7 (921) 555-01-23", false},
		{"Plain Digits", "89215550123", false},
		{"Letters", "call-me-maybe", true},
		{"Too Short", "12345", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePhone(tt.phone)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRating(t *testing.T) {
	t.Parallel()
	for rating, wantErr := range map[int]bool{0: true, 1: false, 3: false, 5: false, 6: true, -1: true} {
		err := ValidateRating(rating)
		if wantErr {
			assert.Error(t, err, "rating %d", rating)
		} else {
			assert.NoError(t, err, "rating %d", rating)
		}
	}
}

func TestValidateDescription(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateDescription("washing machine leaks from the door seal"))
	assert.NoError(t, ValidateDescription(""))
	assert.Error(t, ValidateDescription(strings.Repeat("x", 4001)))
}
