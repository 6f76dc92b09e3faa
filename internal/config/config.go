// Package config loads an MCS node's JSON configuration document: which
// storage implementations to create at startup, the one listen address
// shared by the control and transport providers, the meta-data backend, and the collection engine's
// comm-buffer/direct/indirect tunables. It follows the teacher's own
// configuration idiom (persistence-ceph.go's init()-time
// BackendRegistry keyed by a config string, json.RawMessage per-section
// decoding) rather than reaching for viper or cobra.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docker/go-units"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// StorageConfig is one entry of the "storages" array: a kind discriminator
// plus a human-readable size and an implementation-specific config blob,
// decoded further by transport.NewImplementationFromConfig.
type StorageConfig struct {
	Kind   string          `json:"kind"`
	Size   string          `json:"size"`   // e.g. "512MiB", "1GiB"; empty/"unlimited" means domain.Unlimited()
	Config json.RawMessage `json:"config"`
}

// MetadataConfig names which Backend implementation to construct and its
// connection string (a file-system directory for files, a DSN for
// mysql/postgres).
type MetadataConfig struct {
	Backend     string `json:"backend"` // "files", "mysql", "postgres"
	DSN         string `json:"dsn"`
	WorkspaceID string `json:"workspace_id"`
}

// CommBufferConfig sizes the collection engine's communication buffer
// (§4.5.3).
type CommBufferConfig struct {
	NumberOfBuffers uint32 `json:"number_of_buffers"`
	SlotSize        string `json:"slot_size"`
}

// TransferConfig names one of the direct/indirect transfer tunables
// (§4.5.3): maximum number of parallel streams, the maximum size of a
// single sub-transfer, and (indirect only) the comm-buffer acquire
// timeout. For Indirect, MaximumTransferSize is advisory, not
// independent: §4.5.3 defines the comm buffer as number_of_buffers ×
// maximum_transfer_size, i.e. a sub-transfer can never exceed
// CommBufferConfig.SlotSize regardless of what's configured here —
// internal/collection.indirectTransfer clamps to whichever is tighter.
type TransferConfig struct {
	MaximumNumberOfParallelStreams   int    `json:"maximum_number_of_parallel_streams"`
	MaximumTransferSize              string `json:"maximum_transfer_size"`
	AcquireBufferTimeoutMilliseconds int    `json:"acquire_buffer_timeout_milliseconds"`
}

// NodeConfig is the top-level document cmd/mcs-nodeserver and
// cmd/mcsmakedb both decode.
type NodeConfig struct {
	// Listen is the single control+transport endpoint this node serves:
	// a collection engine's Candidate carries one Endpoint per storage
	// and dials it for both segment management and memory get/put, so
	// control and transport commands are served off the same listener
	// rather than split across two (§4.3 names them as separate command
	// sets, not separate sockets).
	Listen     string           `json:"listen"`
	Storages   []StorageConfig  `json:"storages"`
	Metadata   MetadataConfig   `json:"metadata"`
	CommBuffer CommBufferConfig `json:"comm_buffer"`
	Direct     TransferConfig   `json:"direct"`
	Indirect   TransferConfig   `json:"indirect"`
}

// Load reads and decodes a NodeConfig document.
func Load(data []byte) (NodeConfig, error) {
	var cfg NodeConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// ParseSize turns a human-readable size ("512MiB", "1GiB", "", "unlimited")
// into a domain.MaxSize, the generalization of the teacher's plain numeric
// settings (storage/settings.go's ShardSize etc. are bare uint fields) to
// the human-friendly sizes an operator actually types into a node config.
func ParseSize(s string) (domain.MaxSize, error) {
	if s == "" || strings.EqualFold(s, "unlimited") {
		return domain.Unlimited(), nil
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return domain.MaxSize{}, fmt.Errorf("config: parse size %q: %w", s, err)
	}
	return domain.Limit(domain.Size(n)), nil
}

// implementationKinds maps a config "kind" string onto the
// StorageImplementationId transport.NewImplementationFromConfig expects.
var implementationKinds = map[string]domain.StorageImplementationId{
	"heap":      domain.ImplHeap,
	"shmem":     domain.ImplSHMEM,
	"files":     domain.ImplFiles,
	"importedc": domain.ImplImportedC,
	"s3":        domain.ImplS3,
	"ceph":      domain.ImplCeph,
}

// ImplementationKind resolves a config "kind" string to its
// StorageImplementationId.
func ImplementationKind(kind string) (domain.StorageImplementationId, error) {
	id, ok := implementationKinds[strings.ToLower(kind)]
	if !ok {
		return 0, fmt.Errorf("config: unknown storage kind %q", kind)
	}
	return id, nil
}
