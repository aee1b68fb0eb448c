package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

var cgroupMemoryLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",                   // cgroup v2
	"/sys/fs/cgroup/memory/memory.limit_in_bytes", // cgroup v1
}

// GetTotalMemory returns the memory available to the process, preferring a
// container limit over the host's physical memory when one is set.
func GetTotalMemory() uint64 {
	physical := memory.TotalMemory()

	for _, path := range cgroupMemoryLimitFiles {
		limit, ok := readMemoryLimit(path)
		if ok && limit > 0 && limit < physical {
			return limit
		}
	}
	return physical
}

// readMemoryLimit parses a cgroup limit file. Unrestricted limits are either
// "max" (v2) or a page-aligned value near MaxInt64 (v1), both of which exceed
// physical memory and get ignored by the caller.
func readMemoryLimit(path string) (uint64, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	value := strings.TrimSpace(string(raw))
	if value == "max" {
		return 0, false
	}

	limit, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return limit, true
}
