package fsbridge

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	fsb "github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBillyFilesystem(t *testing.T) {
	mem := memfs.New()

	got, err := ToBillyFilesystem(fsb.NewFS(mem))
	require.NoError(t, err)
	assert.Equal(t, mem, got)
}

func TestNewStorage(t *testing.T) {
	for _, size := range []int{-1, 0, 500} {
		storage := NewStorage(memfs.New(), size)
		assert.NotNil(t, storage)
	}
}
