package app

import (
	"strings"
	"testing"
	"time"

	"github.com/gekko3d/vct/voxelrt/rt/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerKeepsFirstSeenOrder(t *testing.T) {
	p := NewProfiler()
	p.BeginScope("update")
	p.EndScope("update")
	p.Record("render", 2*time.Millisecond)
	p.BeginScope("update")
	p.EndScope("update")

	assert.Equal(t, []string{"update", "render"}, p.Order)
	assert.Equal(t, 2*time.Millisecond, p.Scopes["render"])
}

func TestProfilerRecordFrame(t *testing.T) {
	p := NewProfiler()
	p.RecordFrame(pipeline.FrameStats{
		Stages: []pipeline.StageTiming{
			{Name: "clear", Duration: time.Millisecond},
			{Name: "voxelize", Duration: 3 * time.Millisecond},
		},
		Voxelized:     12,
		MipDimensions: []int{4, 2, 1},
	})

	out := p.String()
	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, out, "clear")
	assert.Contains(t, out, "3.00")
	assert.Contains(t, out, "4.00")
	assert.Contains(t, out, "voxelized triangles")
	assert.Contains(t, out, "12")
	assert.Less(t, strings.Index(out, "clear"), strings.Index(out, "voxelize"))

	p.Reset()
	assert.Equal(t, time.Duration(0), p.Scopes["voxelize"])
}
