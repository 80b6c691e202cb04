package validation

import (
	"fmt"
	"regexp"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-]{6,31}$`)

// ValidateCoordinates checks that a lat/lng pair is a real point on the
// globe. Exact (0, 0) is treated as an unset field.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	if lat == 0 && lng == 0 {
		return fmt.Errorf("coordinates are required")
	}
	return nil
}

// ValidatePhone checks a loosely formatted international phone number.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone number format")
	}
	return nil
}

// ValidateRating checks the 1-5 rating scale.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	return nil
}

// ValidateDescription bounds free-text problem descriptions.
func ValidateDescription(description string) error {
	if len(description) > 4000 {
		return fmt.Errorf("description must not exceed 4000 characters")
	}
	return nil
}
