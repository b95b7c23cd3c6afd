package catalog

import "fmt"

// UnknownCatalogError is returned when a catalog name is not in the registry.
type UnknownCatalogError struct {
	Name string
}

func (e *UnknownCatalogError) Error() string {
	return fmt.Sprintf("unknown catalog %q (expected one of %v)", e.Name, Known())
}
