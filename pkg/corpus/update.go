package corpus

import (
	"fmt"

	"github.com/orneryd/corpusdb/pkg/graph"
)

// UpdateEventType enumerates the graph update events.
type UpdateEventType int

const (
	AddNodeEvent UpdateEventType = iota
	DeleteNodeEvent
	AddNodeLabelEvent
	DeleteNodeLabelEvent
	AddEdgeEvent
	DeleteEdgeEvent
	AddEdgeLabelEvent
	DeleteEdgeLabelEvent
)

// UpdateEvent is one entry of a GraphUpdate. Fields are interpreted per
// event type; unused fields stay empty.
type UpdateEvent struct {
	Type UpdateEventType

	NodeName string
	NodeType string

	AnnoNS    string
	AnnoName  string
	AnnoValue string

	SourceNode string
	TargetNode string
	Layer      string
	Component  graph.ComponentType
	CompName   string
}

// GraphUpdate is an ordered list of update events, applied in order by
// DB.ApplyUpdate.
type GraphUpdate struct {
	events []UpdateEvent
}

// AddNode appends a node creation. The node gets the reserved node-name
// and node-type labels.
func (u *GraphUpdate) AddNode(name, nodeType string) {
	u.events = append(u.events, UpdateEvent{Type: AddNodeEvent, NodeName: name, NodeType: nodeType})
}

// DeleteNode appends a node deletion including all its labels.
func (u *GraphUpdate) DeleteNode(name string) {
	u.events = append(u.events, UpdateEvent{Type: DeleteNodeEvent, NodeName: name})
}

// AddNodeLabel appends a label addition to an existing node.
func (u *GraphUpdate) AddNodeLabel(nodeName, ns, name, value string) {
	u.events = append(u.events, UpdateEvent{
		Type: AddNodeLabelEvent, NodeName: nodeName,
		AnnoNS: ns, AnnoName: name, AnnoValue: value,
	})
}

// DeleteNodeLabel appends a label removal.
func (u *GraphUpdate) DeleteNodeLabel(nodeName, ns, name string) {
	u.events = append(u.events, UpdateEvent{
		Type: DeleteNodeLabelEvent, NodeName: nodeName,
		AnnoNS: ns, AnnoName: name,
	})
}

// AddEdge appends an edge addition in the given component.
func (u *GraphUpdate) AddEdge(source, target, layer string, ctype graph.ComponentType, name string) {
	u.events = append(u.events, UpdateEvent{
		Type: AddEdgeEvent, SourceNode: source, TargetNode: target,
		Layer: layer, Component: ctype, CompName: name,
	})
}

// DeleteEdge appends an edge removal.
func (u *GraphUpdate) DeleteEdge(source, target, layer string, ctype graph.ComponentType, name string) {
	u.events = append(u.events, UpdateEvent{
		Type: DeleteEdgeEvent, SourceNode: source, TargetNode: target,
		Layer: layer, Component: ctype, CompName: name,
	})
}

// AddEdgeLabel appends a label addition to an existing edge.
func (u *GraphUpdate) AddEdgeLabel(source, target, layer string, ctype graph.ComponentType, name, annoNS, annoName, annoValue string) {
	u.events = append(u.events, UpdateEvent{
		Type: AddEdgeLabelEvent, SourceNode: source, TargetNode: target,
		Layer: layer, Component: ctype, CompName: name,
		AnnoNS: annoNS, AnnoName: annoName, AnnoValue: annoValue,
	})
}

// DeleteEdgeLabel appends an edge label removal.
func (u *GraphUpdate) DeleteEdgeLabel(source, target, layer string, ctype graph.ComponentType, name, annoNS, annoName string) {
	u.events = append(u.events, UpdateEvent{
		Type: DeleteEdgeLabelEvent, SourceNode: source, TargetNode: target,
		Layer: layer, Component: ctype, CompName: name,
		AnnoNS: annoNS, AnnoName: annoName,
	})
}

// Len returns the number of pending events.
func (u *GraphUpdate) Len() int {
	return len(u.events)
}

// ApplyUpdate applies every event of the update in order. Node names are
// resolved through the node-name label; an event referencing an unknown
// node is an error and aborts the remaining events. Events before the
// failing one stay applied. The DB lock is not held across the update;
// each event locks only the storages it touches.
func (db *DB) ApplyUpdate(update *GraphUpdate) error {
	for i, e := range update.events {
		if err := db.applyEvent(e); err != nil {
			return fmt.Errorf("update event %d: %w", i, err)
		}
	}
	return nil
}

func (db *DB) applyEvent(e UpdateEvent) error {
	switch e.Type {
	case AddNodeEvent:
		nodeType := e.NodeType
		if nodeType == "" {
			nodeType = "node"
		}
		id := db.NodeAnnos.NextFreeID()
		db.NodeAnnos.Add(id, graph.Annotation{
			Name:  db.NodeNameStringID(),
			NS:    db.NamespaceStringID(),
			Value: db.Strings.Add(e.NodeName),
		})
		db.NodeAnnos.Add(id, graph.Annotation{
			Name:  db.Strings.Add(graph.NodeTypeLabel),
			NS:    db.NamespaceStringID(),
			Value: db.Strings.Add(nodeType),
		})
		return nil

	case DeleteNodeEvent:
		id, ok := db.FindNodeByName(e.NodeName)
		if !ok {
			return fmt.Errorf("unknown node %q", e.NodeName)
		}
		for _, anno := range db.NodeAnnos.GetAll(id) {
			db.NodeAnnos.Delete(id, anno.Key())
		}
		return nil

	case AddNodeLabelEvent:
		id, ok := db.FindNodeByName(e.NodeName)
		if !ok {
			return fmt.Errorf("unknown node %q", e.NodeName)
		}
		db.NodeAnnos.Add(id, graph.Annotation{
			Name:  db.Strings.Add(e.AnnoName),
			NS:    db.Strings.Add(e.AnnoNS),
			Value: db.Strings.Add(e.AnnoValue),
		})
		return nil

	case DeleteNodeLabelEvent:
		id, ok := db.FindNodeByName(e.NodeName)
		if !ok {
			return fmt.Errorf("unknown node %q", e.NodeName)
		}
		name, _ := db.Strings.FindID(e.AnnoName)
		ns, _ := db.Strings.FindID(e.AnnoNS)
		db.NodeAnnos.Delete(id, graph.AnnotationKey{Name: name, NS: ns})
		return nil

	case AddEdgeEvent, DeleteEdgeEvent, AddEdgeLabelEvent, DeleteEdgeLabelEvent:
		source, ok := db.FindNodeByName(e.SourceNode)
		if !ok {
			return fmt.Errorf("unknown node %q", e.SourceNode)
		}
		target, ok := db.FindNodeByName(e.TargetNode)
		if !ok {
			return fmt.Errorf("unknown node %q", e.TargetNode)
		}
		component := graph.Component{Type: e.Component, Layer: e.Layer, Name: e.CompName}
		storage := db.EnsureComponent(component)
		edge := graph.Edge{Source: source, Target: target}

		switch e.Type {
		case AddEdgeEvent:
			storage.AddEdge(edge)
		case DeleteEdgeEvent:
			storage.DeleteEdge(edge)
		case AddEdgeLabelEvent:
			storage.AddEdgeAnnotation(edge, graph.Annotation{
				Name:  db.Strings.Add(e.AnnoName),
				NS:    db.Strings.Add(e.AnnoNS),
				Value: db.Strings.Add(e.AnnoValue),
			})
		case DeleteEdgeLabelEvent:
			name, _ := db.Strings.FindID(e.AnnoName)
			ns, _ := db.Strings.FindID(e.AnnoNS)
			storage.DeleteEdgeAnnotation(edge, graph.AnnotationKey{Name: name, NS: ns})
		}
		return nil
	}

	return fmt.Errorf("unknown event type %d", e.Type)
}

// FindNodeByName resolves a node by its reserved node-name label.
func (db *DB) FindNodeByName(name string) (graph.NodeID, bool) {
	valueID, ok := db.Strings.FindID(name)
	if !ok {
		return 0, false
	}
	anno := graph.Annotation{
		Name:  db.NodeNameStringID(),
		NS:    db.NamespaceStringID(),
		Value: valueID,
	}

	var found graph.NodeID
	ok = false
	db.NodeAnnos.EachInRange(anno, anno, func(_ graph.Annotation, node graph.NodeID) bool {
		found = node
		ok = true
		return false
	})
	return found, ok
}
