package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/daryltucker/forest-compare/internal/model"
)

// memUnitsMB converts docker memory units to MiB.
var memUnitsMB = map[string]float64{
	"B":   1.0 / (1024 * 1024),
	"KB":  1.0 / 1024,
	"KIB": 1.0 / 1024,
	"MB":  1,
	"MIB": 1,
	"GB":  1024,
	"GIB": 1024,
}

var memUsageRe = regexp.MustCompile(`(?i)^([\d.]+)\s*([KMG]?i?B)$`)

// Default pidstat columns when no header line precedes the data.
const (
	pidstatDefaultCPU = 6
	pidstatDefaultRSS = 9
)

// ParseSamplesJSONL reads the stream written by the sampler command.
func ParseSamplesJSONL(data []byte) ([]model.RawSample, int) {
	var samples []model.RawSample
	skipped := 0
	eachLine(data, func(line string) {
		if !strings.HasPrefix(line, "{") {
			return
		}
		var s model.RawSample
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			skipped++
			return
		}
		samples = append(samples, s)
	})
	return samples, skipped
}

// ParseDockerStats reads `docker stats` JSON lines ({"cpu":"12.3%","mem":"100MiB / 2GiB"}).
// Non-JSON lines (container name banners, blanks) are ignored.
func ParseDockerStats(data []byte) ([]model.RawSample, int) {
	var samples []model.RawSample
	skipped := 0
	eachLine(data, func(line string) {
		if !strings.HasPrefix(line, "{") {
			return
		}
		var rec struct {
			CPU string `json:"cpu"`
			Mem string `json:"mem"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped++
			return
		}
		cpu, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(rec.CPU), "%"), 64)
		if err != nil {
			skipped++
			return
		}
		rss, ok := parseDockerMem(rec.Mem)
		if !ok {
			skipped++
			return
		}
		samples = append(samples, model.RawSample{CPUPercent: cpu, RSSMB: rss})
	})
	return samples, skipped
}

func parseDockerMem(s string) (float64, bool) {
	used, _, _ := strings.Cut(s, "/")
	m := memUsageRe.FindStringSubmatch(strings.TrimSpace(used))
	if m == nil {
		return 0, false
	}
	val, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	factor, ok := memUnitsMB[strings.ToUpper(m[2])]
	if !ok {
		return 0, false
	}
	return val * factor, true
}

// ParsePidstat reads `pidstat -u -r` text output. Column positions come
// from the most recent header line containing %CPU; RSS is reported in kB.
func ParsePidstat(data []byte) ([]model.RawSample, int) {
	var samples []model.RawSample
	skipped := 0
	cpuCol, rssCol := pidstatDefaultCPU, pidstatDefaultRSS

	eachLine(data, func(line string) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return
		}
		if hasField(fields, "%CPU") || hasField(fields, "RSS") {
			if fields[0] == "#" {
				fields = fields[1:]
			}
			cpuCol, rssCol = indexOf(fields, "%CPU"), indexOf(fields, "RSS")
			return
		}
		if !unicode.IsDigit(rune(line[0])) {
			return
		}
		if cpuCol < 0 || rssCol < 0 || cpuCol >= len(fields) || rssCol >= len(fields) {
			skipped++
			return
		}
		cpu, err1 := strconv.ParseFloat(fields[cpuCol], 64)
		rssKB, err2 := strconv.ParseFloat(fields[rssCol], 64)
		if err1 != nil || err2 != nil {
			skipped++
			return
		}
		samples = append(samples, model.RawSample{
			Timestamp:  pidstatTime(fields[0]),
			CPUPercent: cpu,
			RSSMB:      rssKB / 1024,
		})
	})
	return samples, skipped
}

func pidstatTime(field string) time.Time {
	if secs, err := strconv.ParseInt(field, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	return time.Time{}
}

func eachLine(data []byte, fn func(string)) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			fn(line)
		}
	}
}

func hasField(fields []string, want string) bool {
	return indexOf(fields, want) >= 0
}

func indexOf(fields []string, want string) int {
	for i, f := range fields {
		if f == want {
			return i
		}
	}
	return -1
}
