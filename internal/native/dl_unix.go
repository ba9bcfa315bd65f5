//go:build cgo && unix

package native

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef int (*volctl_get_volume_t)(void);
typedef void (*volctl_set_volume_t)(int);

static void* volctl_dlopen(const char* path) {
    return dlopen(path, RTLD_NOW|RTLD_LOCAL);
}

static void* volctl_dlsym(void* h, const char* name) {
    return dlsym(h, name);
}

static const char* volctl_dlerror(void) {
    return dlerror();
}

static int volctl_call_get(void* fn) {
    return ((volctl_get_volume_t)fn)();
}

static void volctl_call_set(void* fn, int value) {
    ((volctl_set_volume_t)fn)(value);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type dlBackend struct {
	handle unsafe.Pointer
	get    unsafe.Pointer
	set    unsafe.Pointer
}

func (b *dlBackend) Read() int {
	return int(C.volctl_call_get(b.get))
}

func (b *dlBackend) Write(value int) {
	C.volctl_call_set(b.set, C.int(value))
}

func dlerror() string {
	return C.GoString(C.volctl_dlerror())
}

func openLibrary(path string) (Backend, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := C.volctl_dlopen(cpath)
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrNativeLoad, dlerror())
	}

	sym := func(name string) unsafe.Pointer {
		cname := C.CString(name)
		defer C.free(unsafe.Pointer(cname))
		return C.volctl_dlsym(h, cname)
	}

	b := &dlBackend{
		handle: h,
		get:    sym(getVolumeSymbol),
		set:    sym(setVolumeSymbol),
	}
	if b.get == nil || b.set == nil {
		C.dlclose(h)
		return nil, fmt.Errorf("%w: %s: missing %s or %s", ErrNativeLoad, path, getVolumeSymbol, setVolumeSymbol)
	}
	return b, nil
}
