package runner

import (
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const statsCommandTimeout = 2 * time.Second

type ProcessStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   int64   `json:"rss_bytes"`
}

// Stats samples the live backend. It fails when nothing is running.
func (s *Supervisor) Stats(ctx context.Context) (ProcessStats, error) {
	h, ok := s.Current()
	if !ok {
		return ProcessStats{}, fmt.Errorf("backend not running")
	}
	return GetProcessStats(ctx, h.Pid)
}

// GetProcessStats returns CPU percent and RSS memory for a running process.
// On Windows CPU may be reported as -1 when only tasklist is available.
func GetProcessStats(ctx context.Context, pid int) (ProcessStats, error) {
	if pid <= 0 {
		return ProcessStats{}, fmt.Errorf("invalid pid: %d", pid)
	}

	ctx, cancel := context.WithTimeout(ctx, statsCommandTimeout)
	defer cancel()

	if runtime.GOOS == "windows" {
		return getWindowsProcessStats(ctx, pid)
	}

	out, err := exec.CommandContext(ctx, "ps", "-o", "%cpu=", "-o", "rss=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return ProcessStats{}, err
	}
	return parsePSStats(string(out))
}

func parsePSStats(output string) (ProcessStats, error) {
	fields := strings.Fields(output)
	if len(fields) < 2 {
		return ProcessStats{}, fmt.Errorf("unexpected ps output: %q", strings.TrimSpace(output))
	}

	cpu, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("parse cpu: %w", err)
	}
	rssKB, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("parse rss: %w", err)
	}

	return ProcessStats{CPUPercent: cpu, RSSBytes: rssKB * 1024}, nil
}

func getWindowsProcessStats(ctx context.Context, pid int) (ProcessStats, error) {
	out, err := exec.CommandContext(ctx,
		"wmic", "path", "Win32_PerfFormattedData_PerfProc_Process",
		"where", fmt.Sprintf("IDProcess=%d", pid),
		"get", "PercentProcessorTime,WorkingSet",
		"/format:csv",
	).Output()
	if err == nil {
		var stats ProcessStats
		stats, err = parseWMICStats(string(out))
		if err == nil {
			return stats, nil
		}
	}

	listOut, listErr := exec.CommandContext(ctx, "tasklist", "/FI", fmt.Sprintf("PID eq %d", pid), "/FO", "CSV", "/NH").Output()
	if listErr != nil {
		return ProcessStats{}, err
	}
	rss, listErr := parseTasklistRSS(string(listOut))
	if listErr != nil {
		return ProcessStats{}, err
	}
	return ProcessStats{CPUPercent: -1, RSSBytes: rss}, nil
}

func parseWMICStats(output string) (ProcessStats, error) {
	reader := csv.NewReader(strings.NewReader(output))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return ProcessStats{}, err
	}

	cpuIdx, rssIdx := -1, -1
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		if cpuIdx == -1 || rssIdx == -1 {
			for i, field := range record {
				switch field {
				case "PercentProcessorTime":
					cpuIdx = i
				case "WorkingSet":
					rssIdx = i
				}
			}
			continue
		}
		if len(record) <= cpuIdx || len(record) <= rssIdx {
			continue
		}

		cpu, err := strconv.ParseFloat(strings.TrimSpace(record[cpuIdx]), 64)
		if err != nil {
			return ProcessStats{}, fmt.Errorf("parse cpu: %w", err)
		}
		rss, err := strconv.ParseInt(strings.TrimSpace(record[rssIdx]), 10, 64)
		if err != nil {
			return ProcessStats{}, fmt.Errorf("parse rss: %w", err)
		}
		return ProcessStats{CPUPercent: cpu, RSSBytes: rss}, nil
	}

	if cpuIdx != -1 && rssIdx != -1 {
		return ProcessStats{}, fmt.Errorf("no data rows in wmic output")
	}
	return ProcessStats{}, fmt.Errorf("missing wmic headers")
}

func parseTasklistRSS(output string) (int64, error) {
	output = strings.TrimSpace(output)
	if output == "" || strings.HasPrefix(output, "INFO:") {
		return 0, fmt.Errorf("tasklist returned no rows")
	}

	records, err := csv.NewReader(strings.NewReader(output)).ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 || len(records[0]) < 5 {
		return 0, fmt.Errorf("unexpected tasklist output")
	}

	mem := strings.TrimSpace(records[0][4])
	mem = strings.TrimSuffix(mem, " K")
	mem = strings.TrimSuffix(mem, " KB")
	mem = strings.ReplaceAll(mem, ",", "")
	mem = strings.ReplaceAll(mem, ".", "")

	kb, err := strconv.ParseInt(mem, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse memory: %w", err)
	}
	return kb * 1024, nil
}
