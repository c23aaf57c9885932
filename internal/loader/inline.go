package loader

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Checkpoint/internal/domain"
)

// parseInline разбирает сценарий, записанный одним YAML документом.
func parseInline(data []byte) (*domain.Scenario, error) {
	var sc domain.Scenario
	if err := decodeStrict(data, &sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Message: "empty scenario file", Err: ErrMissingName}
		}
		return nil, yamlError(err, 0, 0)
	}

	if err := validate(&sc, nil); err != nil {
		return nil, err
	}
	return &sc, nil
}

// decodeStrict декодирует YAML, отклоняя неизвестные поля.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
