// Package reportio persists per-file coverage reports as protobuf-encoded
// artifacts under <root>/coverage_reports and reads them back.
package reportio

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/harrison/covrun/internal/models"
)

// CoverageReport message.
const (
	fieldDetails   protowire.Number = 1
	fieldFailure   protowire.Number = 2
	fieldExemption protowire.Number = 3
)

// CoverageDetails message.
const (
	fieldDetailsTargets protowire.Number = 1
	fieldDetailsPath    protowire.Number = 2
	fieldDetailsSHA1    protowire.Number = 3
	fieldDetailsLine    protowire.Number = 4
	fieldDetailsFound   protowire.Number = 5
	fieldDetailsHit     protowire.Number = 6
)

// CoveredLine message.
const (
	fieldLineNumber   protowire.Number = 1
	fieldLineCoverage protowire.Number = 2
)

// CoverageFailure message.
const (
	fieldFailureTarget  protowire.Number = 1
	fieldFailurePath    protowire.Number = 2
	fieldFailureMessage protowire.Number = 3
)

// CoverageExemption message.
const (
	fieldExemptionPath   protowire.Number = 1
	fieldExemptionReason protowire.Number = 2
)

// Coverage enum values. Zero is left unspecified.
const (
	coverageFull uint64 = 1
	coverageNone uint64 = 2
)

// ErrInvalidReport is returned when decoded bytes do not form a valid report.
var ErrInvalidReport = errors.New("invalid coverage report")

// MarshalReport encodes a report. Invalid reports are rejected.
func MarshalReport(report models.CoverageReport) ([]byte, error) {
	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to encode report for %q: %w", report.FilePath(), err)
	}

	var out []byte
	switch report.Kind() {
	case models.KindDetails:
		d, _ := report.Details()
		out = protowire.AppendTag(out, fieldDetails, protowire.BytesType)
		out = protowire.AppendBytes(out, marshalDetails(d))
	case models.KindFailure:
		f, _ := report.Failure()
		out = protowire.AppendTag(out, fieldFailure, protowire.BytesType)
		out = protowire.AppendBytes(out, marshalFailure(f))
	case models.KindExemption:
		e, _ := report.Exemption()
		out = protowire.AppendTag(out, fieldExemption, protowire.BytesType)
		out = protowire.AppendBytes(out, marshalExemption(e))
	}
	return out, nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func marshalDetails(d models.CoverageDetails) []byte {
	var b []byte
	for _, target := range d.TestTargets {
		b = protowire.AppendTag(b, fieldDetailsTargets, protowire.BytesType)
		b = protowire.AppendString(b, target)
	}
	b = appendString(b, fieldDetailsPath, d.FilePath)
	b = appendString(b, fieldDetailsSHA1, d.FileSHA1Hash)
	for _, line := range d.CoveredLines {
		var lb []byte
		lb = appendVarint(lb, fieldLineNumber, uint64(line.LineNumber))
		state := coverageNone
		if line.Coverage == models.CoverageFull {
			state = coverageFull
		}
		lb = appendVarint(lb, fieldLineCoverage, state)
		b = protowire.AppendTag(b, fieldDetailsLine, protowire.BytesType)
		b = protowire.AppendBytes(b, lb)
	}
	b = appendVarint(b, fieldDetailsFound, uint64(d.LinesFound))
	b = appendVarint(b, fieldDetailsHit, uint64(d.LinesHit))
	return b
}

func marshalFailure(f models.CoverageFailure) []byte {
	var b []byte
	b = appendString(b, fieldFailureTarget, f.TestTarget)
	b = appendString(b, fieldFailurePath, f.FilePath)
	b = appendString(b, fieldFailureMessage, f.Message)
	return b
}

func marshalExemption(e models.CoverageExemption) []byte {
	var b []byte
	b = appendString(b, fieldExemptionPath, e.FilePath)
	b = appendVarint(b, fieldExemptionReason, uint64(e.Reason))
	return b
}

// fieldFunc handles one decoded field. It returns the number of bytes
// consumed from data, or a negative protowire error code.
type fieldFunc func(num protowire.Number, typ protowire.Type, data []byte) (int, error)

// walk iterates the fields of a message, skipping whatever fn does not
// consume (fn returns 0).
func walk(data []byte, fn fieldFunc) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		used, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if used < 0 {
			return protowire.ParseError(used)
		}
		if used == 0 {
			used = protowire.ConsumeFieldValue(num, typ, data)
			if used < 0 {
				return protowire.ParseError(used)
			}
		}
		data = data[used:]
	}
	return nil
}

// UnmarshalReport decodes a report and checks that it carries exactly one
// valid variant.
func UnmarshalReport(data []byte) (models.CoverageReport, error) {
	var reports []models.CoverageReport
	err := walk(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, nil
		}
		msg, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return n, nil
		}
		switch num {
		case fieldDetails:
			d, err := unmarshalDetails(msg)
			if err != nil {
				return 0, err
			}
			reports = append(reports, models.NewDetailsReport(d))
		case fieldFailure:
			f, err := unmarshalFailure(msg)
			if err != nil {
				return 0, err
			}
			reports = append(reports, models.NewFailureReport(f))
		case fieldExemption:
			e, err := unmarshalExemption(msg)
			if err != nil {
				return 0, err
			}
			reports = append(reports, models.NewExemptionReport(e))
		default:
			return 0, nil
		}
		return n, nil
	})
	if err != nil {
		return models.CoverageReport{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if len(reports) != 1 {
		return models.CoverageReport{}, fmt.Errorf("%w: expected exactly one variant, found %d", ErrInvalidReport, len(reports))
	}
	if err := reports[0].Validate(); err != nil {
		return models.CoverageReport{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return reports[0], nil
}

func consumeString(typ protowire.Type, data []byte, dst *string) int {
	if typ != protowire.BytesType {
		return 0
	}
	v, n := protowire.ConsumeString(data)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeVarint(typ protowire.Type, data []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return 0
	}
	v, n := protowire.ConsumeVarint(data)
	if n >= 0 {
		*dst = v
	}
	return n
}

func unmarshalDetails(data []byte) (models.CoverageDetails, error) {
	var d models.CoverageDetails
	var found, hit uint64
	err := walk(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case fieldDetailsTargets:
			var target string
			n := consumeString(typ, data, &target)
			if n > 0 {
				d.TestTargets = append(d.TestTargets, target)
			}
			return n, nil
		case fieldDetailsPath:
			return consumeString(typ, data, &d.FilePath), nil
		case fieldDetailsSHA1:
			return consumeString(typ, data, &d.FileSHA1Hash), nil
		case fieldDetailsLine:
			if typ != protowire.BytesType {
				return 0, nil
			}
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return n, nil
			}
			line, err := unmarshalLine(msg)
			if err != nil {
				return 0, err
			}
			d.CoveredLines = append(d.CoveredLines, line)
			return n, nil
		case fieldDetailsFound:
			return consumeVarint(typ, data, &found), nil
		case fieldDetailsHit:
			return consumeVarint(typ, data, &hit), nil
		}
		return 0, nil
	})
	d.LinesFound = int(found)
	d.LinesHit = int(hit)
	return d, err
}

func unmarshalLine(data []byte) (models.CoveredLine, error) {
	var number, state uint64
	err := walk(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case fieldLineNumber:
			return consumeVarint(typ, data, &number), nil
		case fieldLineCoverage:
			return consumeVarint(typ, data, &state), nil
		}
		return 0, nil
	})
	if err != nil {
		return models.CoveredLine{}, err
	}

	line := models.CoveredLine{LineNumber: int(number)}
	switch state {
	case coverageFull:
		line.Coverage = models.CoverageFull
	case coverageNone:
		line.Coverage = models.CoverageNone
	default:
		return line, fmt.Errorf("line %d: unknown coverage value %d", number, state)
	}
	return line, nil
}

func unmarshalFailure(data []byte) (models.CoverageFailure, error) {
	var f models.CoverageFailure
	err := walk(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case fieldFailureTarget:
			return consumeString(typ, data, &f.TestTarget), nil
		case fieldFailurePath:
			return consumeString(typ, data, &f.FilePath), nil
		case fieldFailureMessage:
			return consumeString(typ, data, &f.Message), nil
		}
		return 0, nil
	})
	return f, err
}

func unmarshalExemption(data []byte) (models.CoverageExemption, error) {
	var e models.CoverageExemption
	var reason uint64
	err := walk(data, func(num protowire.Number, typ protowire.Type, data []byte) (int, error) {
		switch num {
		case fieldExemptionPath:
			return consumeString(typ, data, &e.FilePath), nil
		case fieldExemptionReason:
			return consumeVarint(typ, data, &reason), nil
		}
		return 0, nil
	})
	if err != nil {
		return e, err
	}
	e.Reason = models.ExemptionReason(reason)
	if e.Reason != models.ExemptionTestNotRequired && e.Reason != models.ExemptionIncompatible {
		return e, fmt.Errorf("exemption for %s: unknown reason %d", e.FilePath, reason)
	}
	return e, nil
}
