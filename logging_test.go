package vct

import (
	"bytes"
	"testing"

	"github.com/gekko3d/vct/voxelrt/rt/pipeline"

	"github.com/stretchr/testify/assert"
)

var _ pipeline.Logger = (*DefaultLogger)(nil)

func TestDefaultLoggerRoutesLevels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut, "vct", false)

	l.Debugf("hidden %d", 1)
	l.Infof("volume %d", 128)
	l.Warnf("slow frame")
	l.Errorf("lost device")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[vct] INFO: volume 128")
	assert.Contains(t, errOut.String(), "[vct] WARN: slow frame")
	assert.Contains(t, errOut.String(), "[vct] ERROR: lost device")

	l.SetDebug(true)
	assert.True(t, l.DebugEnabled())
	l.Debugf("shown %d", 2)
	assert.Contains(t, out.String(), "[vct] DEBUG: shown 2")
}

func TestLoggerWithoutPrefix(t *testing.T) {
	var out bytes.Buffer
	l := NewLoggerTo(&out, &out, "", true)
	l.Infof("plain")
	assert.Contains(t, out.String(), " INFO: plain")
	assert.NotContains(t, out.String(), "[")
}

func TestGuardLogsThenPanics(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut, "vct", false)
	assert.PanicsWithValue(t, "bad viewport 0x0", func() {
		guard(l, "bad viewport %dx%d", 0, 0)
	})
	assert.Contains(t, errOut.String(), "ERROR: bad viewport 0x0")
}
