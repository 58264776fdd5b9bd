package nvml

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/pstated/internal/binding"
	"github.com/haskel/pstated/internal/domain"
)

type stubLibrary struct {
	closed int
}

func (l *stubLibrary) Lookup(symbol string) (uintptr, error) {
	return 0, errors.New("undefined symbol: " + symbol)
}

func (l *stubLibrary) Close() error {
	l.closed++
	return nil
}

func boundLibrary(fn functions) (*Library, *stubLibrary) {
	stub := &stubLibrary{}
	return &Library{candidates: DefaultCandidates(), lib: stub, name: "stub", fn: fn}, stub
}

func TestInit_TriesCandidatesInOrder(t *testing.T) {
	var tried []string
	l := New([]string{"libnvidia-ml.so.1", "libnvidia-ml.so"})
	l.open = func(name string) (binding.Library, error) {
		tried = append(tried, name)
		return nil, errors.New("not found")
	}

	err := l.Init()
	assert.ErrorIs(t, err, domain.ErrLibraryNotFound)
	assert.Equal(t, []string{"libnvidia-ml.so.1", "libnvidia-ml.so"}, tried)
	assert.False(t, l.Loaded())
}

func TestInit_NoSymbolsMeansNotInitialized(t *testing.T) {
	stub := &stubLibrary{}
	l := New(nil)
	l.open = func(name string) (binding.Library, error) {
		return stub, nil
	}

	err := l.Init()
	assert.ErrorIs(t, err, domain.ErrNotInitialized)

	var nativeErr *domain.NativeCallError
	require.ErrorAs(t, err, &nativeErr)
	assert.Equal(t, errorStringFallback, nativeErr.Message)
	assert.True(t, l.Loaded())
}

func TestInit_RecordsLoadedCandidate(t *testing.T) {
	stub := &stubLibrary{}
	l := New([]string{"libnvidia-ml.so.1", "libnvidia-ml.so"})
	l.open = func(name string) (binding.Library, error) {
		if name == "libnvidia-ml.so.1" {
			return nil, errors.New("not found")
		}
		return stub, nil
	}

	_ = l.Init()
	assert.Equal(t, "libnvidia-ml.so", l.LibraryName())

	var mon domain.MonitoringLibrary = l
	name, err := mon.Name(1)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.Empty(t, name)
}

func TestReadings(t *testing.T) {
	l, _ := boundLibrary(functions{
		deviceGetHandleByIndex: func(index uint32, device *uintptr) int32 {
			*device = uintptr(0x100 + index)
			return int32(Success)
		},
		deviceGetTemperature: func(device uintptr, sensor uint32, temp *uint32) int32 {
			if sensor != temperatureGPU {
				return int32(ErrorInvalidArg)
			}
			*temp = 65
			return int32(Success)
		},
		deviceGetUtilizationRates: func(device uintptr, util *utilization) int32 {
			util.GPU = 42
			util.Memory = 7
			return int32(Success)
		},
		deviceGetPciInfo: func(device uintptr, pci *pciInfo) int32 {
			pci.Bus = uint32(device - 0x100 + 1)
			return int32(Success)
		},
		deviceGetName: func(device uintptr, name *byte, length uint32) int32 {
			assert.Equal(t, uint32(nameBufferSize), length)
			buf := []byte("NVIDIA GeForce RTX 3090\x00")
			copy(unsafe.Slice(name, length), buf)
			return int32(Success)
		},
		deviceGetCount: func(count *uint32) int32 {
			*count = 2
			return int32(Success)
		},
	})

	h, err := l.DeviceHandle(1)
	require.NoError(t, err)
	assert.Equal(t, domain.MonitorHandle(0x101), h)

	temp, err := l.Temperature(h)
	require.NoError(t, err)
	assert.Equal(t, uint32(65), temp)

	util, err := l.Utilization(h)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), util)

	bus, err := l.BusID(h)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), bus)

	name, err := l.Name(h)
	require.NoError(t, err)
	assert.Equal(t, "NVIDIA GeForce RTX 3090", name)

	count, err := l.DeviceCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAbsentSlots(t *testing.T) {
	l, _ := boundLibrary(functions{
		errorString: func(ret int32) string { return "Uninitialized" },
	})

	_, err := l.Temperature(1)
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
	assert.Contains(t, err.Error(), "Uninitialized")

	_, err = l.DeviceCount()
	assert.ErrorIs(t, err, domain.ErrNotInitialized)
}

func TestNativeErrorMessage(t *testing.T) {
	l, _ := boundLibrary(functions{
		deviceGetUtilizationRates: func(uintptr, *utilization) int32 {
			return int32(ErrorNotSupported)
		},
		errorString: func(ret int32) string {
			if Return(ret) == ErrorNotSupported {
				return "Not Supported"
			}
			return ""
		},
	})

	_, err := l.Utilization(1)
	var nativeErr *domain.NativeCallError
	require.ErrorAs(t, err, &nativeErr)
	assert.Equal(t, "nvmlDeviceGetUtilizationRates", nativeErr.Call)
	assert.Equal(t, "Not Supported", nativeErr.Message)
	assert.NotErrorIs(t, err, domain.ErrNotInitialized)
}

func TestShutdown(t *testing.T) {
	results := []int32{int32(ErrorUninitialized), int32(Success)}
	l, stub := boundLibrary(functions{
		shutdown: func() int32 {
			r := results[0]
			results = results[1:]
			return r
		},
	})

	require.Error(t, l.Shutdown())
	assert.True(t, l.Loaded())

	require.NoError(t, l.Shutdown())
	assert.False(t, l.Loaded())
	assert.Equal(t, 1, stub.closed)

	require.NoError(t, l.Shutdown())
	assert.Equal(t, 1, stub.closed)
}

func TestSymbolVariantsPreferNewest(t *testing.T) {
	for o, names := range symbols {
		require.NotEmpty(t, names, "op %d has no symbols", o)
	}
	assert.Equal(t, "nvmlInit_v2", symbols[opInit][0])
	assert.Equal(t, "nvmlDeviceGetPciInfo_v3", symbols[opDeviceGetPciInfo][0])
}
