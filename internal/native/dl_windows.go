//go:build windows

package native

import (
	"fmt"

	"golang.org/x/sys/windows"
)

type dllBackend struct {
	dll *windows.DLL
	get *windows.Proc
	set *windows.Proc
}

func (b *dllBackend) Read() int {
	r, _, _ := b.get.Call()
	return int(int32(r))
}

func (b *dllBackend) Write(value int) {
	b.set.Call(uintptr(value))
}

func openLibrary(path string) (Backend, error) {
	dll, err := windows.LoadDLL(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNativeLoad, err)
	}

	get, err := dll.FindProc(getVolumeSymbol)
	if err != nil {
		dll.Release()
		return nil, fmt.Errorf("%w: %w", ErrNativeLoad, err)
	}
	set, err := dll.FindProc(setVolumeSymbol)
	if err != nil {
		dll.Release()
		return nil, fmt.Errorf("%w: %w", ErrNativeLoad, err)
	}
	return &dllBackend{dll: dll, get: get, set: set}, nil
}
