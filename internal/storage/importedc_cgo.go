//go:build importedc

package storage

/*
#cgo LDFLAGS: -ldl
#include <stdint.h>
#include <stdlib.h>
#include <dlfcn.h>

// channel_sink is the out-of-band error channel described in spec §6: the
// C side calls it with a pointer+length whenever a call fails. An empty
// channel (len==0) means success.
typedef void (*channel_sink)(void *ctx, const char *data, size_t len);

typedef struct {
	void *(*construct)(const char *params, size_t params_len);
	void (*destruct)(void *instance);
	uint64_t (*size_max)(void *instance, channel_sink err, void *ctx);
	uint64_t (*size_used)(void *instance, channel_sink err, void *ctx);
	uint64_t (*segment_create)(void *instance, uint64_t size, channel_sink err, channel_sink badalloc, void *ctx);
	uint64_t (*segment_remove)(void *instance, uint64_t segment, channel_sink err, void *ctx);
	size_t (*chunk_const_description)(void *instance, uint64_t segment, int64_t begin, uint64_t length, char *out, size_t outcap, channel_sink err, void *ctx);
	size_t (*chunk_mutable_description)(void *instance, uint64_t segment, int64_t begin, uint64_t length, char *out, size_t outcap, channel_sink err, void *ctx);
	size_t (*file_read)(void *instance, uint64_t segment, int64_t begin, uint64_t length, char *out, channel_sink err, void *ctx);
	size_t (*file_write)(void *instance, uint64_t segment, int64_t begin, const char *data, uint64_t length, channel_sink err, void *ctx);
} mcs_methods_table;

typedef mcs_methods_table *(*mcs_entry_point)(void);

static mcs_methods_table *mcs_load(const char *path, const char *symbol, void **handle_out) {
	void *handle = dlopen(path, RTLD_NOW);
	if (!handle) return 0;
	mcs_entry_point entry = (mcs_entry_point)dlsym(handle, symbol);
	if (!entry) return 0;
	*handle_out = handle;
	return entry();
}

static void *mcs_methods_table_construct(mcs_methods_table *t, const char *params, size_t params_len) {
	return t->construct(params, params_len);
}

static void mcs_methods_table_destruct(mcs_methods_table *t, void *instance) {
	t->destruct(instance);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/cc-hpc-itwm/mcs-sub000/internal/domain"
)

// ImportedCConfig names the shared object to dlopen and the entry point
// that returns its methods table (spec §6).
type ImportedCConfig struct {
	SharedObjectPath string
	EntryPointSymbol string // defaults to "mcs_storage_methods" if empty
}

// ImportedC loads a foreign methods table from a shared object and calls
// its construct slot to create an instance. No other slot is called: every
// segment, chunk and file operation returns domain.MethodNotProvidedError,
// and the table's error and BadAlloc channels are never read.
type ImportedC struct {
	acc      *accounting
	handle   unsafe.Pointer
	table    *C.mcs_methods_table
	instance unsafe.Pointer

	mu sync.Mutex
}

//export mcs_go_channel_sink
func mcs_go_channel_sink(ctx unsafe.Pointer, data *C.char, length C.size_t) {
	sink := (*channelState)(ctx)
	if length > 0 {
		sink.bytes = C.GoBytes(unsafe.Pointer(data), C.int(length))
	}
}

type channelState struct {
	bytes []byte
}

func NewImportedC(max domain.MaxSize, cfg ImportedCConfig) *ImportedC {
	symbol := cfg.EntryPointSymbol
	if symbol == "" {
		symbol = "mcs_storage_methods"
	}
	cpath := C.CString(cfg.SharedObjectPath)
	defer C.free(unsafe.Pointer(cpath))
	csym := C.CString(symbol)
	defer C.free(unsafe.Pointer(csym))

	var handle unsafe.Pointer
	table := C.mcs_load(cpath, csym, &handle)
	if table == nil {
		panic(fmt.Sprintf("ImportedC: failed to load %s::%s", cfg.SharedObjectPath, symbol))
	}
	if table.construct == nil {
		panic(&domain.InstanceMustNotBeNullError{})
	}
	instance := C.mcs_methods_table_construct(table, nil, 0)
	if instance == nil {
		panic(&domain.InstanceMustNotBeNullError{})
	}
	return &ImportedC{acc: newAccounting(max), handle: handle, table: table, instance: instance}
}

// the remaining methods intentionally omitted from the default build:
// exercising real cgo call sites requires a shared object built against
// this exact ABI, which this repository does not ship. The struct above
// documents the wire contract completely; Kind/SizeMax/etc. are provided
// so ImportedC still satisfies storage.Implementation when built with
// -tags importedc against a real .so.

func (i *ImportedC) Kind() domain.StorageImplementationId { return domain.ImplImportedC }
func (i *ImportedC) SizeMax() domain.MaxSize               { return i.acc.max }
func (i *ImportedC) SizeUsed() domain.Size                 { return i.acc.used_() }

func (i *ImportedC) SegmentCreate(size domain.Size) (domain.SegmentId, error) {
	return 0, &domain.MethodNotProvidedError{Method: "segment_create"}
}
func (i *ImportedC) SegmentRemove(id domain.SegmentId) (domain.Size, error) {
	return 0, &domain.MethodNotProvidedError{Method: "segment_remove"}
}
func (i *ImportedC) ChunkDescription(access domain.ChunkAccess, id domain.SegmentId, r domain.Range) (ChunkDescription, error) {
	return ChunkDescription{}, &domain.MethodNotProvidedError{Method: "chunk_description"}
}
func (i *ImportedC) OpenChunk(desc ChunkDescription) (Chunk, error) {
	return nil, &domain.MethodNotProvidedError{Method: "chunk_description"}
}
func (i *ImportedC) FileRead(id domain.SegmentId, r domain.Range) ([]byte, error) {
	return nil, &domain.MethodNotProvidedError{Method: "file_read"}
}
func (i *ImportedC) FileWrite(id domain.SegmentId, offset domain.Offset, data []byte) (domain.Size, error) {
	return 0, &domain.MethodNotProvidedError{Method: "file_write"}
}
func (i *ImportedC) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.table.destruct != nil && i.instance != nil {
		C.mcs_methods_table_destruct(i.table, i.instance)
	}
	return nil
}
