//go:build unix

package stackalloc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// arenaImpl on unix targets mmaps stackMemoryBytesCount = pagesCount*pageSize
// (usable size rounded up, plus one extra leading guard page) and
// mprotects the guard page to PROT_NONE, mirroring
// MTAllocator.cpp::Memory::AllocStack exactly.
type arenaImpl struct {
	mem    []byte // full mapping, including the guard page at the front
	bottom int    // offset of the usable region's start within mem
}

func newArenaImpl(size int) (arenaImpl, error) {
	pageSize := unix.Getpagesize()

	pagesCount := size / pageSize
	if size%pageSize != 0 {
		pagesCount++
	}
	// one extra page for the guard.
	pagesCount++

	total := pagesCount * pageSize
	mem, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return arenaImpl{}, fmt.Errorf("mmap: %w", err)
	}

	if err := unix.Mprotect(mem[:pageSize], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(mem)
		return arenaImpl{}, fmt.Errorf("mprotect guard page: %w", err)
	}

	return arenaImpl{mem: mem, bottom: pageSize}, nil
}

func (a *arenaImpl) usable() []byte {
	return a.mem[a.bottom:]
}

func (a *arenaImpl) release() error {
	if a.mem == nil {
		return nil
	}
	err := unix.Munmap(a.mem)
	a.mem = nil
	return err
}
