package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"feedqueue/internal/domain/entity"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Codec serializes messages for the downstream queue.
type Codec interface {
	Encode(msg *entity.Message) ([]byte, error)
	ContentType() string
}

func NewCodec(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatYAML, "":
		return yamlCodec{}, nil
	case FormatJSON:
		return jsonCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown message format: %s", format)
	}
}

type yamlCodec struct{}

func (yamlCodec) Encode(msg *entity.Message) ([]byte, error) {
	data, err := yaml.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

func (yamlCodec) ContentType() string {
	return "application/yaml"
}

type jsonCodec struct{}

func (jsonCodec) Encode(msg *entity.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

func (jsonCodec) ContentType() string {
	return "application/json"
}
