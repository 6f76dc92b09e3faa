package wire

// CommandKind is the stable discriminator every command carries on the
// wire (§6). The client/server pair must agree on which discriminants
// they understand; an unknown discriminant is rejected rather than
// guessed at.
type CommandKind uint8

const (
	CmdStorageCreate CommandKind = iota
	CmdStorageRemove
	CmdStorageSizeMax
	CmdStorageSizeUsed
	CmdStorageSize // combined size_max + size_used
	CmdSegmentCreate
	CmdSegmentRemove
	CmdChunkDescription
	CmdFileRead
	CmdFileWrite
	CmdMemoryGet
	CmdMemoryPut
)

func (k CommandKind) String() string {
	switch k {
	case CmdStorageCreate:
		return "storage_create"
	case CmdStorageRemove:
		return "storage_remove"
	case CmdStorageSizeMax:
		return "storage_size_max"
	case CmdStorageSizeUsed:
		return "storage_size_used"
	case CmdStorageSize:
		return "storage_size"
	case CmdSegmentCreate:
		return "segment_create"
	case CmdSegmentRemove:
		return "segment_remove"
	case CmdChunkDescription:
		return "chunk_description"
	case CmdFileRead:
		return "file_read"
	case CmdFileWrite:
		return "file_write"
	case CmdMemoryGet:
		return "memory_get"
	case CmdMemoryPut:
		return "memory_put"
	default:
		return "unknown"
	}
}

// StatusKind tags a response as success or one of the coarse failure
// classes a caller can recover structured error detail from.
type StatusKind uint8

const (
	StatusOK StatusKind = iota
	StatusError
)

// ControlCommandSet is the set of discriminants a control provider/client
// pair understands (§4.3).
var ControlCommandSet = map[CommandKind]bool{
	CmdStorageCreate:    true,
	CmdStorageRemove:    true,
	CmdStorageSizeMax:   true,
	CmdStorageSizeUsed:  true,
	CmdStorageSize:      true,
	CmdSegmentCreate:    true,
	CmdSegmentRemove:    true,
	CmdChunkDescription: true,
	CmdFileRead:         true,
	CmdFileWrite:        true,
}

// TransportCommandSet is the set of discriminants a transport provider
// serves — only memory_get/memory_put (§4.3).
var TransportCommandSet = map[CommandKind]bool{
	CmdMemoryGet: true,
	CmdMemoryPut: true,
}
