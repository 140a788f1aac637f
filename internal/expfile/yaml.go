package expfile

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tabautoml/pkg/errors"
)

func decodeYAML(src []byte, path string) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrapf(err, "failed to decode experiment file %s", path)
	}
	return &f, nil
}
