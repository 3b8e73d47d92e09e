package graph

import (
	"fmt"

	"dronematch/internal/model"
)

// NodeKind discriminates what an OperationalNode wraps.
type NodeKind int

const (
	KindDeliveryRequest NodeKind = iota + 1
	KindDock
)

func (k NodeKind) String() string {
	switch k {
	case KindDeliveryRequest:
		return "delivery_request"
	case KindDock:
		return "dock"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// OperationalNode wraps either a delivery request or a dock. Exactly one of
// Request and Dock is set, as selected by Kind.
type OperationalNode struct {
	Kind    NodeKind
	Request *model.DeliveryRequest
	Dock    *model.Dock
}

// RequestNode wraps a delivery request.
func RequestNode(r model.DeliveryRequest) OperationalNode {
	return OperationalNode{Kind: KindDeliveryRequest, Request: &r}
}

// DockNode wraps a dock.
func DockNode(d model.Dock) OperationalNode {
	return OperationalNode{Kind: KindDock, Dock: &d}
}

// ID returns the identity of the wrapped request or dock.
func (n OperationalNode) ID() string {
	switch n.Kind {
	case KindDeliveryRequest:
		if n.Request != nil {
			return n.Request.ID
		}
	case KindDock:
		if n.Dock != nil {
			return n.Dock.ID
		}
	}
	return ""
}

// Key identifies a node inside a graph. Two nodes are equal when their keys
// are equal, whatever else the wrapped values carry.
func (n OperationalNode) Key() string {
	return n.Kind.String() + ":" + n.ID()
}

// Equal reports whether n and o wrap the same identity.
func (n OperationalNode) Equal(o OperationalNode) bool { return n.Key() == o.Key() }

// IsDepot reports whether the node is a dock.
func (n OperationalNode) IsDepot() bool { return n.Kind == KindDock && n.Dock != nil }

// IsDeliveryRequest reports whether the node is a delivery request.
func (n OperationalNode) IsDeliveryRequest() bool {
	return n.Kind == KindDeliveryRequest && n.Request != nil
}

func (n OperationalNode) window() model.TimeWindow {
	switch {
	case n.IsDeliveryRequest():
		return n.Request.TimeWindow
	case n.IsDepot():
		return n.Dock.TimeWindow
	}
	return model.TimeWindow{}
}

func (n OperationalNode) valid() bool { return n.IsDeliveryRequest() || n.IsDepot() }
