package exemption

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"gopkg.in/yaml.v3"

	"github.com/harrison/covrun/internal/models"
)

// ErrTableNotFound is returned by LoadTable when the file does not exist.
var ErrTableNotFound = errors.New("exemption table not found")

// Field numbers of the TestFileExemptions message.
const (
	fieldExemption protowire.Number = 1

	fieldExemptedFilePath     protowire.Number = 1
	fieldTestFileNotRequired  protowire.Number = 2
	fieldOverrideMinCoverage  protowire.Number = 3
	fieldIncompatibleCoverage protowire.Number = 4
)

type yamlTable struct {
	TestFileExemptions []models.TestFileExemption `yaml:"test_file_exemptions"`
}

// LoadTable reads the exemption table at path. Files ending in .pb are
// decoded as a binary TestFileExemptions message; anything else is YAML.
// A missing file returns ErrTableNotFound.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, path)
		}
		return nil, fmt.Errorf("failed to read exemption table: %w", err)
	}

	var rows []models.TestFileExemption
	if strings.EqualFold(filepath.Ext(path), ".pb") {
		rows, err = UnmarshalProto(data)
	} else {
		rows, err = unmarshalYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse exemption table %s: %w", path, err)
	}

	return NewTable(rows), nil
}

func unmarshalYAML(data []byte) ([]models.TestFileExemption, error) {
	var doc yamlTable
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.TestFileExemptions, nil
}

// UnmarshalProto decodes a binary TestFileExemptions message.
func UnmarshalProto(data []byte) ([]models.TestFileExemption, error) {
	var rows []models.TestFileExemption
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		if num == fieldExemption && typ == protowire.BytesType {
			msg, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			row, err := unmarshalExemption(msg)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
			data = data[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
	}
	return rows, nil
}

func unmarshalExemption(data []byte) (models.TestFileExemption, error) {
	var row models.TestFileExemption
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return row, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldExemptedFilePath && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return row, protowire.ParseError(n)
			}
			row.ExemptedFilePath = v
			data = data[n:]
		case typ == protowire.VarintType && (num == fieldTestFileNotRequired || num == fieldOverrideMinCoverage || num == fieldIncompatibleCoverage):
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return row, protowire.ParseError(n)
			}
			switch num {
			case fieldTestFileNotRequired:
				row.TestFileNotRequired = protowire.DecodeBool(v)
			case fieldOverrideMinCoverage:
				row.OverrideMinCoveragePercentRequired = int(int32(v))
			case fieldIncompatibleCoverage:
				row.SourceFileIsIncompatibleWithCodeCoverage = protowire.DecodeBool(v)
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return row, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return row, nil
}

// MarshalProto encodes rows as a binary TestFileExemptions message.
func MarshalProto(rows []models.TestFileExemption) []byte {
	var out []byte
	for _, row := range rows {
		var msg []byte
		if row.ExemptedFilePath != "" {
			msg = protowire.AppendTag(msg, fieldExemptedFilePath, protowire.BytesType)
			msg = protowire.AppendString(msg, row.ExemptedFilePath)
		}
		if row.TestFileNotRequired {
			msg = protowire.AppendTag(msg, fieldTestFileNotRequired, protowire.VarintType)
			msg = protowire.AppendVarint(msg, protowire.EncodeBool(true))
		}
		if row.OverrideMinCoveragePercentRequired != 0 {
			msg = protowire.AppendTag(msg, fieldOverrideMinCoverage, protowire.VarintType)
			msg = protowire.AppendVarint(msg, uint64(int64(row.OverrideMinCoveragePercentRequired)))
		}
		if row.SourceFileIsIncompatibleWithCodeCoverage {
			msg = protowire.AppendTag(msg, fieldIncompatibleCoverage, protowire.VarintType)
			msg = protowire.AppendVarint(msg, protowire.EncodeBool(true))
		}
		out = protowire.AppendTag(out, fieldExemption, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}
	return out
}
