package sheetsync

import "errors"

var (
	// ErrSheetNotFound is returned by operations that require the target
	// sheet to exist, such as Clear. Reads treat a missing sheet as empty
	// instead.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrInvalidRequest marks request payloads rejected before dispatch.
	ErrInvalidRequest = errors.New("invalid request")
)
