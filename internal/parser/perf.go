package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParsePerfCycles extracts the total cycle count from `perf stat -e cycles`
// output. The first counter line whose event name starts with "cycles" wins;
// thousands separators are accepted.
func ParsePerfCycles(data []byte) (float64, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[0] == "<not" && len(fields) > 2 && strings.HasPrefix(fields[2], "cycles") {
			return 0, errors.New("cycles counter not counted")
		}
		if !strings.HasPrefix(fields[1], "cycles") {
			continue
		}
		raw := strings.ReplaceAll(fields[0], ",", "")
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid cycle count %q: %w", fields[0], err)
		}
		if n < 0 {
			return 0, fmt.Errorf("negative cycle count %v", n)
		}
		return n, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, errors.New("no cycles counter line")
}

// ParsePerfCyclesFile reads and parses a perf_cycles.txt file.
func ParsePerfCyclesFile(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return ParsePerfCycles(data)
}
