package memutils_test

import (
	"math"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/ltd-go/ltd/memutils"
	"github.com/stretchr/testify/require"
)

func TestDetailedStatisticsAccumulate(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	require.Equal(t, math.MaxInt, stats.AllocationSizeMin)
	require.Equal(t, math.MaxInt, stats.UnusedRangeSizeMin)

	stats.BlockCount = 1
	stats.BlockBytes = 1000
	stats.AddAllocation(100)
	stats.AddAllocation(300)
	stats.AddUnusedRange(600)

	var other memutils.DetailedStatistics
	other.Clear()
	other.BlockCount = 1
	other.BlockBytes = 500
	other.AddAllocation(50)
	other.AddUnusedRange(450)

	stats.AddDetailedStatistics(&other)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			BlockCount:      2,
			BlockBytes:      1500,
			AllocationCount: 3,
			AllocationBytes: 450,
		},
		UnusedRangeCount:   2,
		AllocationSizeMin:  50,
		AllocationSizeMax:  300,
		UnusedRangeSizeMin: 450,
		UnusedRangeSizeMax: 600,
	}, stats)
}

func TestDetailedStatisticsJson(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	stats.BlockCount = 1
	stats.BlockBytes = 64
	stats.AddAllocation(16)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	stats.PrintJson(&obj)
	obj.End()

	require.NoError(t, writer.Error())
	require.JSONEq(t, `{
		"BlockCount": 1,
		"BlockBytes": 64,
		"AllocationCount": 1,
		"AllocationBytes": 16,
		"UnusedRangeCount": 0,
		"AllocationSizeMin": 16,
		"AllocationSizeMax": 16
	}`, string(writer.Bytes()))
}
