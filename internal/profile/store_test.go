package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logveil/logveil/internal/logger"
)

func TestStoreSwap(t *testing.T) {
	first, err := Default().Compile()
	require.NoError(t, err)
	second, err := nginx().Compile()
	require.NoError(t, err)

	store := NewStore(first, logger.NewNop())

	assert.Equal(t, "default", store.Active().Name)
	assert.Equal(t, uint64(1), store.Version())

	store.Swap(second)
	assert.Equal(t, "nginx", store.Active().Name)
	assert.Equal(t, uint64(2), store.Version())

	// A profile handed out before the swap stays intact
	assert.Equal(t, "default", first.Name)
}

func TestStoreSwapHook(t *testing.T) {
	first, err := Default().Compile()
	require.NoError(t, err)
	second, err := nginx().Compile()
	require.NoError(t, err)

	store := NewStore(first, logger.NewNop())

	var gotName string
	var gotVersion uint64
	store.SetOnSwap(func(p *Profile, v uint64) {
		gotName = p.Name
		gotVersion = v
	})

	store.Swap(second)
	assert.Equal(t, "nginx", gotName)
	assert.Equal(t, uint64(2), gotVersion)
}

func TestStoreConcurrentReaders(t *testing.T) {
	first, err := Default().Compile()
	require.NoError(t, err)
	second, err := docker().Compile()
	require.NoError(t, err)

	store := NewStore(first, logger.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			p := store.Active()
			// Readers always observe a complete profile, old or new
			if p.Name != "default" && p.Name != "docker" {
				t.Errorf("Observed torn profile: %q", p.Name)
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		store.Swap(second)
		store.Swap(first)
	}
	<-done
}

func TestStatic(t *testing.T) {
	p, err := nginx().Compile()
	require.NoError(t, err)

	src := NewStatic(p)
	assert.Same(t, p, src.Active())
}
