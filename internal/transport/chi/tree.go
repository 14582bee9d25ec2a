package chi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/fallsearch/internal/domain"
	"github.com/kailas-cloud/fallsearch/internal/domain/query"
)

const maxTreeDepth = 32

// nodeDTO is the wire form of a query node. A node with op or children is a
// branch; otherwise it is a leaf. Unknown operators and input types, and leaves
// without a value, degrade to AND, raw and an empty term. Only unparsable JSON
// and excessive depth are rejected.
type nodeDTO struct {
	Op       string          `json:"op,omitempty"`
	Children []nodeDTO       `json:"children,omitempty"`
	Field    string          `json:"field,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	Input    string          `json:"input,omitempty"`
}

// decodeTree parses a JSON query tree. Empty input yields a nil root.
func decodeTree(data json.RawMessage) (query.Node, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var dto nodeDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuery, err.Error())
	}
	return dto.toNode(1)
}

func (d nodeDTO) toNode(depth int) (query.Node, error) {
	if depth > maxTreeDepth {
		return nil, fmt.Errorf("%w: tree deeper than %d", domain.ErrInvalidQuery, maxTreeDepth)
	}

	if d.Op != "" || d.Children != nil {
		op, err := query.ParseOp(d.Op)
		if err != nil {
			op = query.And
		}
		children := make([]query.Node, 0, len(d.Children))
		for i, c := range d.Children {
			n, err := c.toNode(depth + 1)
			if err != nil {
				return nil, fmt.Errorf("children[%d]: %w", i, err)
			}
			children = append(children, n)
		}
		return query.NewBranch(op, children...), nil
	}

	if len(d.Value) == 0 {
		return query.NewLeaf(d.Field, query.Raw{}), nil
	}
	value, err := decodeValue(d.Value)
	if err != nil {
		return nil, err
	}
	in, err := query.NewInput(d.Input, value)
	if err != nil {
		in = query.Raw{Value: value}
	}
	return query.NewLeaf(d.Field, in), nil
}

// decodeValue keeps numbers in their literal form so they stringify unchanged.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuery, err.Error())
	}
	return v, nil
}
