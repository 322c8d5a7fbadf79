package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// register struct-level validation for flash-sale payloads to ensure
	// the sale window is ordered (end strictly after start).
	v.RegisterStructValidation(createFlashSaleStructValidation, CreateFlashSaleRequest{})
	v.RegisterStructValidation(updateFlashSaleStructValidation, UpdateFlashSaleRequest{})

	return v
}

func createFlashSaleStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateFlashSaleRequest)

	if !req.EndTime.After(req.StartTime) {
		sl.ReportError(req.EndTime, "endTime", "EndTime", "end_after_start", "")
	}
}

func updateFlashSaleStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(UpdateFlashSaleRequest)

	// only enforce ordering when both ends of the window are being replaced;
	// a single-ended patch is checked against the stored sale by the handler.
	if req.StartTime != nil && req.EndTime != nil && !req.EndTime.After(*req.StartTime) {
		sl.ReportError(*req.EndTime, "endTime", "EndTime", "end_after_start", "")
	}
}
