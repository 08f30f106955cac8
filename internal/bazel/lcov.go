package bazel

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/harrison/covrun/internal/models"
)

// LcovRecord is the line data of one SF section of an LCOV tracefile.
type LcovRecord struct {
	SourceFile string
	Lines      []models.CoveredLine // sorted, one entry per line
}

// ParseLcov reads an LCOV tracefile. Only SF and DA entries are used;
// LF/LH totals are recomputed by the aggregator. A line listed more than
// once in a section is FULL if any entry has hits.
func ParseLcov(r io.Reader) ([]LcovRecord, error) {
	var records []LcovRecord
	var current *LcovRecord
	var hits map[int]bool

	flush := func() {
		if current == nil {
			return
		}
		for line, hit := range hits {
			state := models.CoverageNone
			if hit {
				state = models.CoverageFull
			}
			current.Lines = append(current.Lines, models.CoveredLine{LineNumber: line, Coverage: state})
		}
		models.SortLines(current.Lines)
		records = append(records, *current)
		current = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(text, "SF:"):
			flush()
			current = &LcovRecord{SourceFile: strings.TrimPrefix(text, "SF:")}
			hits = make(map[int]bool)
		case strings.HasPrefix(text, "DA:"):
			if current == nil {
				return nil, fmt.Errorf("lcov line %d: DA entry outside of SF section", lineNo)
			}
			fields := strings.Split(strings.TrimPrefix(text, "DA:"), ",")
			if len(fields) < 2 {
				return nil, fmt.Errorf("lcov line %d: malformed DA entry %q", lineNo, text)
			}
			line, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, fmt.Errorf("lcov line %d: bad line number: %w", lineNo, err)
			}
			count, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("lcov line %d: bad hit count: %w", lineNo, err)
			}
			hits[line] = hits[line] || count > 0
		case text == "end_of_record":
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lcov data: %w", err)
	}
	flush()

	return records, nil
}
