//go:build debug_mem_utils

package memory_test

import (
	"testing"

	"github.com/ltd-go/ltd/memutils"
	"github.com/stretchr/testify/require"
)

func TestArenaDetectsOverrun(t *testing.T) {
	arena := newArena(t, 256)

	block, err := arena.Allocate(16)
	require.NoError(t, err)
	require.NoError(t, arena.CheckCorruption())

	overrun := block
	overrun.Size += memutils.DebugMargin
	overrun.Bytes()[16] = 0

	require.Error(t, arena.CheckCorruption())
}
