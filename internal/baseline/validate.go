package baseline

import (
	"fmt"
	"time"

	"github.com/mikesvoboda/nemotron-v3-home-security-intelligence-sub017/internal/errors"
)

func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("baseline").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

func validateCamera(cameraID string) error {
	if cameraID == "" {
		return validationError("camera id must not be empty", "camera_id", cameraID)
	}
	return nil
}

func validateHour(hour int) error {
	if hour < 0 || hour > 23 {
		return validationError("hour must be between 0 and 23", "hour", hour)
	}
	return nil
}

func validateDetection(cameraID, detectionClass string, ts time.Time) error {
	if err := validateCamera(cameraID); err != nil {
		return err
	}
	if detectionClass == "" {
		return validationError("detection class must not be empty", "detection_class", detectionClass)
	}
	if ts.IsZero() {
		return validationError("detection timestamp must be set", "timestamp", ts)
	}
	return nil
}
