package plugins

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/andrei-cloud/go_scriptbridge/pkg/hostabi"
)

// guestMemory is the part of api.Memory the host functions use.
type guestMemory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// HostFunctions exposes a Kernel to guests as the "env" module.
type HostFunctions struct {
	kernel *hostabi.Kernel
	plugin string
}

// NewHostFunctions creates the host functions for plugin backed by kernel.
func NewHostFunctions(kernel *hostabi.Kernel, plugin string) *HostFunctions {
	return &HostFunctions{kernel: kernel, plugin: plugin}
}

// Register instantiates the env module in runtime.
func (h *HostFunctions) Register(ctx context.Context, runtime wazero.Runtime) error {
	k := h.kernel
	builder := runtime.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().
		WithFunc(func(context.Context) uint64 { return k.InputLength() }).
		Export("input_length")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, offset uint64) uint32 { return uint32(k.InputLoadByte(offset)) }).
		Export("input_load_byte")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, size uint64) uint64 { return k.Alloc(size) }).
		Export("alloc")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, offset uint64) { k.Free(offset) }).
		Export("free")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, offset uint64, ptr, size uint32) {
			h.store(m.Memory(), offset, ptr, size)
		}).
		Export("store")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, offset, length uint64) { k.OutputSet(offset, length) }).
		Export("output_set")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, offset uint64) uint64 { return k.Length(offset) }).
		Export("length")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, offset uint64, ptr, size uint32) {
			h.load(m.Memory(), offset, ptr, size)
		}).
		Export("load")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, namePtr, nameSize uint32, input uint64) uint64 {
			return h.call(m.Memory(), namePtr, nameSize, input)
		}).
		Export("host_call")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, offset uint64) { k.ErrorSet(offset) }).
		Export("error_set")

	builder.NewFunctionBuilder().
		WithFunc(func(_ context.Context, m api.Module, ptr, size, level uint32) {
			h.log(m.Memory(), ptr, size, level)
		}).
		Export("log")

	if _, err := builder.Instantiate(ctx); err != nil {
		return err
	}

	return nil
}

// store copies size bytes at ptr in guest memory into the kernel block at offset.
func (h *HostFunctions) store(mem guestMemory, offset uint64, ptr, size uint32) {
	data, ok := mem.Read(ptr, size)
	if !ok {
		log.Error().
			Str("event", "guest_memory_fault").
			Str("plugin", h.plugin).
			Uint32("ptr", ptr).
			Uint32("size", size).
			Msg("failed to read memory in store")

		return
	}
	h.kernel.Store(offset, data)
}

// load copies size bytes of the kernel block at offset into guest memory at ptr.
func (h *HostFunctions) load(mem guestMemory, offset uint64, ptr, size uint32) {
	buf := make([]byte, size)
	h.kernel.Load(offset, buf)
	if !mem.Write(ptr, buf) {
		log.Error().
			Str("event", "guest_memory_fault").
			Str("plugin", h.plugin).
			Uint32("ptr", ptr).
			Uint32("size", size).
			Msg("failed to write memory in load")
	}
}

// call runs the host function named in guest memory and returns the result block offset.
func (h *HostFunctions) call(mem guestMemory, namePtr, nameSize uint32, input uint64) uint64 {
	name, ok := mem.Read(namePtr, nameSize)
	if !ok {
		log.Error().
			Str("event", "guest_memory_fault").
			Str("plugin", h.plugin).
			Msg("failed to read memory in host_call")

		return 0
	}

	log.Debug().
		Str("event", "host_call").
		Str("plugin", h.plugin).
		Str("function", string(name)).
		Msg("guest called host function")

	return h.kernel.Call(string(name), input)
}

// log forwards a guest message to the kernel.
func (h *HostFunctions) log(mem guestMemory, ptr, size, level uint32) {
	data, ok := mem.Read(ptr, size)
	if !ok {
		log.Error().
			Str("event", "guest_memory_fault").
			Str("plugin", h.plugin).
			Msg("failed to read memory in log")

		return
	}
	h.kernel.Log(hostabi.LogLevel(level), string(data))
}
