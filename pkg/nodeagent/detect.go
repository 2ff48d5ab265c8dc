package nodeagent

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// fallbackMemoryBytes is spec.md §4.J's "8Gi" fallback when memory
// detection fails.
const fallbackMemoryBytes = 8 * 1024 * 1024 * 1024

// HostResources is the raw host inventory (spec.md §4.J).
type HostResources struct {
	CPUCount    int
	MemoryBytes int64
}

// Detect reads host CPU count and total memory. Memory detection reads
// /proc/meminfo; on any failure it falls back to 8Gi and logs a warning,
// per spec.md §4.J.
func Detect(log *slog.Logger) HostResources {
	cpu := runtime.NumCPU()
	mem, err := readMemTotal("/proc/meminfo")
	if err != nil {
		if log != nil {
			log.Warn("host memory detection failed, falling back to 8Gi", "err", err)
		}
		mem = fallbackMemoryBytes
	}
	return HostResources{CPUCount: cpu, MemoryBytes: mem}
}

// readMemTotal parses the "MemTotal:  NNNN kB" line of a /proc/meminfo-
// shaped file into bytes.
func readMemTotal(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("malformed MemTotal line: %q", line)
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse MemTotal value: %w", err)
		}
		return kb * 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%s: MemTotal line not found", path)
}
