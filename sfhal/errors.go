package sfhal

import "errors"

var (
	ErrorInvalidArgument   = errors.New("Invalid argument")
	ErrorAlignment         = errors.New("Address is not aligned to the erase boundary")
	ErrorBoundary          = errors.New("Access crosses a partition boundary")
	ErrorTimeout           = errors.New("The operation did not complete in time")
	ErrorAllocation        = errors.New("Scratch buffer unavailable")
	ErrorNotReady          = errors.New("Flash is not initialized")
	ErrorInvalidTransition = errors.New("Invalid flash state transition")
	ErrorUnknownRegion     = errors.New("Unknown memory region")
	ErrorMissingFunction   = errors.New("This function is not supported for this region")
	ErrorInvalidProfile    = errors.New("Invalid board profile")
)
