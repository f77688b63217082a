package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) so services can translate them into domain errors or
// degrade. For bad input use pkg/domain-errors directly.
var (
	ErrNotFound = errors.New("not found")
)
