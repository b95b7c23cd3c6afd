package dispatch

import (
	"fmt"

	"github.com/banshee-data/exoquest/internal/catalog"
)

// UnavailableError is returned for a known catalog whose artifacts failed to
// load.
type UnavailableError struct {
	Catalog catalog.ID
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("catalog %s is not available", e.Catalog)
	}
	return fmt.Sprintf("catalog %s is not available: %v", e.Catalog, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
