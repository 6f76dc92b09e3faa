// Package nodecli is the shared plumbing every cmd/mcs* utility needs to
// talk to a running mcs-nodeserver from its JSON configuration file: an
// Endpoint to dial, a Node to drive the collection engine through, and
// the Candidate list a collection_open/collection_append call needs.
//
// The thin CLI utilities (§6) never share a process with the node they
// talk to, so they can't read its live registry.Registry. Instead they
// recompute the same StorageId assignment the node would have made:
// registry.Registry.CreateStorage issues sequential ids starting at 1 in
// call order, and mcs-nodeserver creates storages in the order they
// appear in the config's "storages" array, so index+1 here matches what
// the server actually assigned at startup. This is an explicit, documented
// assumption for these out-of-scope-core wrappers, not a guarantee the
// engine itself relies on anywhere.
package nodecli

import (
	"os"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/collection"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/config"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/metadata"
	"github.com/cc-hpc-itwm/mcs-sub000/internal/transport"
)

// LoadConfig reads and decodes a node configuration file.
func LoadConfig(path string) (config.NodeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.NodeConfig{}, err
	}
	return config.Load(data)
}

// Endpoint is the control+transport endpoint every configured storage is
// reachable on (see internal/config.NodeConfig.Listen).
func Endpoint(cfg config.NodeConfig) transport.Endpoint {
	return transport.Endpoint{Network: "tcp", Address: cfg.Listen}
}

// Candidates rebuilds the Candidate list for cfg's configured storages,
// in declaration order, matching the StorageIds mcs-nodeserver assigned
// at startup (see package doc).
func Candidates(cfg config.NodeConfig) ([]collection.Candidate, error) {
	endpoint := Endpoint(cfg)
	out := make([]collection.Candidate, len(cfg.Storages))
	for i, sc := range cfg.Storages {
		max, err := config.ParseSize(sc.Size)
		if err != nil {
			return nil, err
		}
		capacity, bounded := max.Value()
		if !bounded {
			// An unbounded storage still needs a finite capacity figure
			// for AsEqualAsPossible's feasibility check; domain.Size's
			// max value stands in for "as much as asked."
			capacity = domain.Size(^uint64(0))
		}
		out[i] = collection.Candidate{
			Storage:  domain.StorageId(i + 1),
			Endpoint: endpoint,
			Capacity: capacity,
		}
	}
	return out, nil
}

// OpenNode wires a collection.Node from cfg's meta-data, comm-buffer and
// direct/indirect sections — the same construction mcs-nodeserver itself
// performs when cfg.Metadata.Backend is set.
func OpenNode(cfg config.NodeConfig) (*collection.Node, error) {
	backend, err := buildBackend(cfg.Metadata)
	if err != nil {
		return nil, err
	}
	ws := metadata.NewWorkspace(cfg.Metadata.WorkspaceID, backend)

	commSlot, err := config.ParseSize(cfg.CommBuffer.SlotSize)
	if err != nil {
		return nil, err
	}
	slotSize, _ := commSlot.Value()
	comm, err := collection.NewCommBuffer(cfg.CommBuffer.NumberOfBuffers, slotSize)
	if err != nil {
		return nil, err
	}

	directMax, err := config.ParseSize(cfg.Direct.MaximumTransferSize)
	if err != nil {
		return nil, err
	}
	directMaxSize, _ := directMax.Value()
	indirectMax, err := config.ParseSize(cfg.Indirect.MaximumTransferSize)
	if err != nil {
		return nil, err
	}
	indirectMaxSize, _ := indirectMax.Value()

	node := collection.NewNode(ws, transport.NewClientCache(), collection.NewBufferRegistry(), comm,
		collection.DirectConfig{
			MaximumNumberOfParallelStreams: cfg.Direct.MaximumNumberOfParallelStreams,
			MaximumTransferSize:            directMaxSize,
		},
		collection.IndirectConfig{
			NumberOfBuffers:                  cfg.CommBuffer.NumberOfBuffers,
			MaximumTransferSize:              indirectMaxSize,
			MaximumNumberOfParallelStreams:   cfg.Indirect.MaximumNumberOfParallelStreams,
			AcquireBufferTimeoutMilliseconds: cfg.Indirect.AcquireBufferTimeoutMilliseconds,
		},
	)
	return node, nil
}

func buildBackend(mc config.MetadataConfig) (metadata.Backend, error) {
	switch mc.Backend {
	case "files":
		return metadata.NewFilesBackend(mc.DSN)
	case "mysql":
		return metadata.NewMySQLBackend(mc.DSN)
	case "postgres":
		return metadata.NewPostgresBackend(mc.DSN)
	default:
		return nil, &domain.UnsupportedError{Reason: "unknown metadata backend: " + mc.Backend}
	}
}
