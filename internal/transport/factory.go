package transport

import (
	"encoding/json"
	"fmt"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/storage"
)

// NewImplementationFromConfig builds a storage.Implementation of kind impl
// from a JSON-encoded config payload, the same dispatch-on-a-configured-
// string-then-json.Unmarshal idiom the teacher's BackendRegistry uses to
// turn a persistence config block into a concrete PersistenceFactory. This
// is what a storage_create control command runs server-side: the wire
// protocol never ships a constructed Implementation, only the kind and the
// bytes needed to build one locally.
func NewImplementationFromConfig(impl domain.StorageImplementationId, max domain.MaxSize, config []byte) (storage.Implementation, error) {
	switch impl {
	case domain.ImplHeap:
		return storage.NewHeap(max), nil
	case domain.ImplSHMEM:
		var cfg struct {
			Prefix string `json:"prefix"`
			Mlock  bool   `json:"mlock"`
		}
		if len(config) > 0 {
			if err := json.Unmarshal(config, &cfg); err != nil {
				return nil, fmt.Errorf("transport: decode shmem config: %w", err)
			}
		}
		return storage.NewSHMEM(max, cfg.Prefix, cfg.Mlock), nil
	case domain.ImplFiles:
		var cfg struct {
			Prefix string `json:"prefix"`
		}
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("transport: decode files config: %w", err)
		}
		return storage.NewFiles(max, cfg.Prefix)
	case domain.ImplS3:
		var cfg storage.S3Config
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("transport: decode s3 config: %w", err)
		}
		return storage.NewS3(max, cfg), nil
	case domain.ImplCeph:
		var cfg storage.CephConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("transport: decode ceph config: %w", err)
		}
		return storage.NewCeph(max, cfg), nil
	case domain.ImplImportedC:
		var cfg storage.ImportedCConfig
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("transport: decode importedc config: %w", err)
		}
		return storage.NewImportedC(max, cfg), nil
	default:
		return nil, &domain.UnsupportedError{Reason: fmt.Sprintf("unknown storage implementation id %d", impl)}
	}
}
