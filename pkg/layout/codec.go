package layout

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/kintree/pkg/lineage"
)

// layoutJSON is the serialized form of a Layout. The node index is
// rebuilt on decode rather than stored.
type layoutJSON struct {
	Frame Frame  `json:"frame"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Marshal serializes the layout to JSON for caching and transport.
func (l *Layout) Marshal() ([]byte, error) {
	data, err := json.Marshal(layoutJSON{Frame: l.Frame, Nodes: l.Nodes, Edges: l.Edges})
	if err != nil {
		return nil, fmt.Errorf("marshal layout: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a layout serialized with [Layout.Marshal].
func Unmarshal(data []byte) (*Layout, error) {
	var lj layoutJSON
	if err := json.Unmarshal(data, &lj); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	l := &Layout{
		Frame: lj.Frame,
		Nodes: lj.Nodes,
		Edges: lj.Edges,
		index: make(map[lineage.NodeID]int, len(lj.Nodes)),
	}
	for i, n := range l.Nodes {
		l.index[n.ID] = i
	}
	return l, nil
}
