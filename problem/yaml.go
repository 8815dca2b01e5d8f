package problem

import (
	"bytes"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// YAMLReader reads problem files written in YAML. Keys missing from the
// file keep their Default values; unknown keys are an error.
type YAMLReader struct{}

// ReadProblem implements the Reader interface
func (r YAMLReader) ReadProblem(data []byte) (*Problem, error) {
	p := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return nil, errors.Wrap(err, "Invalid problem YAML")
	}
	return p, nil
}

// WriteProblem implements the Reader interface
func (r YAMLReader) WriteProblem(p *Problem) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, errors.Wrap(err, "Could not encode problem")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "Could not encode problem")
	}
	return buf.Bytes(), nil
}
