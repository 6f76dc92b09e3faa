//go:build !importedc

package storage

import "github.com/cc-hpc-itwm/mcs-sub000/internal/domain"

// ImportedC is a stub when embedded-C ABI support is not compiled in.
// Build with -tags=importedc to load a shared object implementing the
// methods table described in spec §6.
type ImportedC struct{}

// ImportedCConfig names the shared object to dlopen and the entry point
// that returns its methods table.
type ImportedCConfig struct {
	SharedObjectPath string
	EntryPointSymbol string // defaults to "mcs_storage_methods" if empty
}

func NewImportedC(max domain.MaxSize, cfg ImportedCConfig) *ImportedC {
	panic("embedded-C ABI support not compiled in. Build with: go build -tags=importedc")
}
