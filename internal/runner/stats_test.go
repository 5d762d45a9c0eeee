package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePSStats(t *testing.T) {
	stats, err := parsePSStats("  1,5  20480\n")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, stats.CPUPercent, 0.0001)
	assert.Equal(t, int64(20480*1024), stats.RSSBytes)

	_, err = parsePSStats("")
	require.Error(t, err)
}

func TestParseWMICStats(t *testing.T) {
	out := "\r\nNode,PercentProcessorTime,WorkingSet\r\nHOST,12,4096\r\n"
	stats, err := parseWMICStats(out)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, stats.CPUPercent, 0.0001)
	assert.Equal(t, int64(4096), stats.RSSBytes)

	_, err = parseWMICStats("Node,Other\r\nHOST,1\r\n")
	require.Error(t, err)
}

func TestParseTasklistRSS(t *testing.T) {
	rss, err := parseTasklistRSS(`"python.exe","4242","Console","1","25,180 K"`)
	require.NoError(t, err)
	assert.Equal(t, int64(25180*1024), rss)

	_, err = parseTasklistRSS("INFO: No tasks are running which match the specified criteria.")
	require.Error(t, err)
}

func TestGetProcessStatsRejectsInvalidPid(t *testing.T) {
	_, err := GetProcessStats(context.Background(), 0)
	require.Error(t, err)
}

func TestSupervisorStatsWithoutBackend(t *testing.T) {
	s := NewSupervisor(Options{Spawner: newFakeSpawner()})
	_, err := s.Stats(context.Background())
	require.Error(t, err)
}
