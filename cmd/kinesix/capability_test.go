package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/gocapability/capability"
)

func TestCanOpenDevices(t *testing.T) {
	caps, err := capability.NewPid2(0)
	require.NoError(t, err)
	caps.Clear(capability.CAPS)
	assert.False(t, canOpenDevices(caps))

	caps.Set(capability.EFFECTIVE, capability.CAP_DAC_READ_SEARCH)
	assert.False(t, canOpenDevices(caps))

	caps.Set(capability.EFFECTIVE, capability.CAP_DAC_OVERRIDE)
	assert.True(t, canOpenDevices(caps))
}
