package artifact

import (
	"errors"
	"fmt"

	"github.com/banshee-data/exoquest/internal/catalog"
)

var errMissing = errors.New("artifact missing")

// LoadError reports an artifact that could not be fetched, decoded or
// validated. A catalog whose artifacts fail to load is unavailable.
type LoadError struct {
	Catalog  catalog.ID
	Artifact Kind
	Err      error
}

func (e *LoadError) Error() string {
	if e.Artifact == "" {
		return fmt.Sprintf("load %s artifacts: %v", e.Catalog, e.Err)
	}
	return fmt.Sprintf("load %s %s artifact: %v", e.Catalog, e.Artifact, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
