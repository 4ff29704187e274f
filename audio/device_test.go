package audio

import (
	"errors"
	"sync"
	"testing"

	"github.com/ebitengine/oto/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubOtoContext(t *testing.T, fn func(*oto.NewContextOptions) (*oto.Context, chan struct{}, error)) {
	t.Helper()
	prev := otoContextFn
	otoContextFn = fn
	otoOnce = sync.Once{}
	otoShared, otoInitErr = nil, nil
	t.Cleanup(func() {
		otoContextFn = prev
		otoOnce = sync.Once{}
		otoShared, otoInitErr = nil, nil
	})
}

func TestSpeakerDeviceSurvivesSessionRestart(t *testing.T) {
	contexts := 0
	stubOtoContext(t, func(opts *oto.NewContextOptions) (*oto.Context, chan struct{}, error) {
		contexts++
		assert.Equal(t, 24000, opts.SampleRate)
		assert.Equal(t, 1, opts.ChannelCount)
		ready := make(chan struct{})
		close(ready)
		return &oto.Context{}, ready, nil
	})

	// First session.
	first, err := NewSpeakerDevice(24000)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// Second session after teardown must reuse the process-wide context
	// rather than failing on a second context creation.
	second, err := NewSpeakerDevice(24000)
	require.NoError(t, err)
	require.NoError(t, second.Close())

	assert.Equal(t, 1, contexts, "audio context is created once per process")
	assert.Same(t, first.otoCtx, second.otoCtx)
}

func TestSpeakerDeviceContextFailure(t *testing.T) {
	failure := errors.New("no audio backend")
	stubOtoContext(t, func(*oto.NewContextOptions) (*oto.Context, chan struct{}, error) {
		return nil, nil, failure
	})

	_, err := NewSpeakerDevice(24000)
	require.Error(t, err)
	assert.ErrorIs(t, err, failure)
}
