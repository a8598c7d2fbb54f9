package manifold

import "errors"

// ErrUnavailable is returned by New when built without -tags=manifold.
var ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")
