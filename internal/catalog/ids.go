package catalog

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

type snowflakeSource struct {
	node *snowflake.Node
}

func (s snowflakeSource) Next() int64 {
	return s.node.Generate().Int64()
}

var (
	defaultOnce   sync.Once
	defaultSource IDSource
)

// DefaultIDSource returns a process-wide snowflake generator on node 1.
func DefaultIDSource() IDSource {
	defaultOnce.Do(func() {
		node, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		defaultSource = snowflakeSource{node: node}
	})
	return defaultSource
}

// NewSnowflakeSource builds a generator for the given node number (0-1023).
func NewSnowflakeSource(node int64) (IDSource, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return snowflakeSource{node: n}, nil
}

// SequenceSource hands out increasing ids starting after From. Tests use it
// to get predictable identifiers.
type SequenceSource struct {
	mu   sync.Mutex
	From int64
}

// Next returns the next id in the sequence.
func (s *SequenceSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.From++
	return s.From
}
