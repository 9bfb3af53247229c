// Package definition reads process definitions from YAML documents.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"gopkg.in/yaml.v3"
)

// LoadYAML reads and indexes the process definition stored in filename.
func LoadYAML(filename string) (*runtime.ProcessDefinition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load from file: %w", err)
	}
	def, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filename, err)
	}
	return def, nil
}

// ParseYAML decodes and indexes a single process definition. Unknown fields are rejected,
// a loop without loopMax is unbounded.
func ParseYAML(data []byte) (*runtime.ProcessDefinition, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", runtime.ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("failed to unmarshal yaml data: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var def runtime.ProcessDefinition
	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml data: %w", err)
	}
	if def.Id == "" {
		return nil, fmt.Errorf("%w: process has no id", runtime.ErrInvalidDefinition)
	}
	for i, node := range sequence(mappingValue(document(&doc), "flowNodes")) {
		loop := mappingValue(node, "loop")
		if loop != nil && mappingValue(loop, "loopMax") == nil && i < len(def.FlowNodes) && def.FlowNodes[i].Loop != nil {
			def.FlowNodes[i].Loop.LoopMax = -1
		}
	}
	if err := def.Index(); err != nil {
		return nil, err
	}
	return &def, nil
}

func document(n *yaml.Node) *yaml.Node {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return n.Content[0]
	}
	return n
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func sequence(n *yaml.Node) []*yaml.Node {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	return n.Content
}
