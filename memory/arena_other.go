//go:build !unix

package memory

import "unsafe"

// mapRegion falls back to Go heap memory when anonymous mappings are not available
func mapRegion(size int) ([]byte, func([]byte) error, error) {
	words := make([]uint64, (size+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)

	return data, func([]byte) error { return nil }, nil
}
