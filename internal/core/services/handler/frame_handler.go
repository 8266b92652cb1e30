// Package handler implements the staged, chainable frame-dispatch mechanism
// every MLME subsystem hangs off. Handlers live in an arena and are referred
// to by NodeID, which keeps ownership explicit and rules out cycles through
// shared pointers.
//
// Dispatch for one frame at one node proceeds through three stages, each an
// optional interface the handler may implement:
//
//  1. HandleAnyFrame, a coarse filter over every frame.
//  2. A family-level hook (mgmt/data/ctrl/service) seeing only the header
//     or ordinal.
//  3. A fully-typed hook for the concrete subtype.
//
// Returning ErrStopPropagation from any stage converts to nil at the caller
// but skips the remaining stages, the children, and the forward target. Any
// other error from the stages aborts the node's own path and propagates.
// After a successful self-dispatch the frame fans out to every child in
// registration order (child errors are logged, not propagated) and then to
// the one-shot forward target, if a hook set one during this dispatch.
//
// Not thread-safe; an arena must be driven from one logical thread.
package handler

import (
	"errors"
	"fmt"
	"log"

	"github.com/lcalzada-xor/mlmed/internal/core/domain"
)

// ErrStopPropagation short-circuits the current node's dispatch. It is
// reported as success to the caller.
var ErrStopPropagation = errors.New("stop frame propagation")

// ErrForwardAlreadySet is returned when a second hook tries to claim the
// one-shot forward target for the same in-flight frame.
var ErrForwardAlreadySet = errors.New("forward target already set for this frame")

// NodeID is an arena handle. The zero value means "no node".
type NodeID int

// None is the absent node handle.
const None NodeID = 0

// Handler is the minimal capability every registered node provides. The
// stage hooks below are discovered by type assertion.
type Handler interface {
	HandlerName() string
}

// AnyFrameHandler is the stage-1 coarse filter.
type AnyFrameHandler interface {
	HandleAnyFrame(d *Dispatch) error
}

// MgmtFrameHandler is the stage-2 hook for management frames.
type MgmtFrameHandler interface {
	HandleMgmtFrame(d *Dispatch, hdr domain.MgmtHeader) error
}

// DataFrameHandler is the stage-2 hook for data frames.
type DataFrameHandler interface {
	HandleDataFrame(d *Dispatch) error
}

// CtrlFrameHandler is the stage-2 hook for control frames.
type CtrlFrameHandler interface {
	HandleCtrlFrame(d *Dispatch) error
}

// ServiceMsgHandler is the stage-2 hook for service messages; it sees only
// the transport header.
type ServiceMsgHandler interface {
	HandleServiceMsg(d *Dispatch, hdr domain.ServiceHeader) error
}

// BeaconHandler is the stage-3 hook for beacons.
type BeaconHandler interface {
	HandleBeacon(d *Dispatch, f *domain.BeaconFrame) error
}

// ProbeResponseHandler is the stage-3 hook for probe responses.
type ProbeResponseHandler interface {
	HandleProbeResponse(d *Dispatch, f *domain.ProbeResponseFrame) error
}

// DeauthHandler is the stage-3 hook for deauthentication frames.
type DeauthHandler interface {
	HandleDeauth(d *Dispatch, f *domain.DeauthFrame) error
}

// ScanRequestHandler is the stage-3 hook for the scan-request ordinal.
type ScanRequestHandler interface {
	HandleMlmeScanReq(d *Dispatch, req *domain.ScanRequest) error
}

type node struct {
	h        Handler
	children []NodeID
	alive    bool
}

// Arena owns all registered handlers. Index 0 is a sentinel so that the
// zero NodeID is never a valid handle.
type Arena struct {
	nodes []node
}

// NewArena creates an empty handler arena.
func NewArena() *Arena {
	return &Arena{nodes: make([]node, 1)}
}

// Register adds a handler and returns its handle.
func (a *Arena) Register(h Handler) NodeID {
	a.nodes = append(a.nodes, node{h: h, alive: true})
	return NodeID(len(a.nodes) - 1)
}

// Remove detaches a handler from the arena and from every parent's child
// list. The handle becomes invalid.
func (a *Arena) Remove(id NodeID) {
	if !a.valid(id) {
		return
	}
	a.nodes[id].alive = false
	a.nodes[id].children = nil
	for i := range a.nodes {
		a.removeChildAt(NodeID(i), id)
	}
}

// AddChild appends child to parent's dispatch chain. Children observe the
// frame in registration order. A handler may be the child of several parents.
func (a *Arena) AddChild(parent, child NodeID) error {
	if !a.valid(parent) || !a.valid(child) {
		return fmt.Errorf("add child %d to %d: invalid handle", child, parent)
	}
	for _, c := range a.nodes[parent].children {
		if c == child {
			return fmt.Errorf("add child %d to %d: already registered", child, parent)
		}
	}
	a.nodes[parent].children = append(a.nodes[parent].children, child)
	return nil
}

// RemoveChild detaches child from parent's chain; unknown pairs are a no-op.
func (a *Arena) RemoveChild(parent, child NodeID) {
	if !a.valid(parent) {
		return
	}
	a.removeChildAt(parent, child)
}

func (a *Arena) removeChildAt(parent, child NodeID) {
	kids := a.nodes[parent].children
	for i, c := range kids {
		if c == child {
			a.nodes[parent].children = append(kids[:i], kids[i+1:]...)
			return
		}
	}
}

func (a *Arena) valid(id NodeID) bool {
	return id > 0 && int(id) < len(a.nodes) && a.nodes[id].alive
}

// Dispatch runs the staged dispatch for one frame rooted at the given node.
func (a *Arena) Dispatch(root NodeID, frame domain.Frame) error {
	if !a.valid(root) {
		return fmt.Errorf("dispatch: invalid root handle %d", root)
	}
	return a.dispatchNode(root, frame)
}

// Dispatch is the per-node, per-frame dispatch state handed to every hook.
// The one-shot forward target lives here instead of on the handler itself,
// so it cannot leak across frames.
type Dispatch struct {
	arena   *Arena
	frame   domain.Frame
	forward NodeID
}

// Frame returns the frame being dispatched.
func (d *Dispatch) Frame() domain.Frame { return d.frame }

// ForwardTo arms the one-shot forward target for the current node's
// dispatch. It may be set at most once per in-flight frame.
func (d *Dispatch) ForwardTo(id NodeID) error {
	if d.forward != None {
		return ErrForwardAlreadySet
	}
	if !d.arena.valid(id) {
		return fmt.Errorf("forward to %d: invalid handle", id)
	}
	d.forward = id
	return nil
}

func (a *Arena) dispatchNode(id NodeID, frame domain.Frame) error {
	if !a.valid(id) {
		return fmt.Errorf("dispatch: invalid handle %d", id)
	}
	h := a.nodes[id].h
	d := &Dispatch{arena: a, frame: frame}

	// Stage 1: coarse filter.
	if any, ok := h.(AnyFrameHandler); ok {
		if err := any.HandleAnyFrame(d); err != nil {
			if errors.Is(err, ErrStopPropagation) {
				return nil
			}
			return err
		}
	}

	// Stage 2: family hook.
	if err := a.runFamilyStage(h, d, frame); err != nil {
		if errors.Is(err, ErrStopPropagation) {
			return nil
		}
		return err
	}

	// Stage 3: typed hook.
	if err := a.runTypedStage(h, d, frame); err != nil {
		if errors.Is(err, ErrStopPropagation) {
			return nil
		}
		return err
	}

	// Self-dispatch succeeded: fan out to children, best effort.
	for _, child := range a.nodes[id].children {
		if err := a.dispatchNode(child, frame); err != nil {
			log.Printf("handler %q: child %q failed: %v",
				h.HandlerName(), a.nameOf(child), err)
		}
	}

	// Consume the one-shot forward target regardless of its result.
	if d.forward != None {
		target := d.forward
		d.forward = None
		if err := a.dispatchNode(target, frame); err != nil {
			log.Printf("handler %q: forward target %q failed: %v",
				h.HandlerName(), a.nameOf(target), err)
		}
	}
	return nil
}

func (a *Arena) runFamilyStage(h Handler, d *Dispatch, frame domain.Frame) error {
	switch frame.Family() {
	case domain.FamilyMgmt:
		if mh, ok := h.(MgmtFrameHandler); ok {
			hdr, _ := mgmtHeader(frame)
			return mh.HandleMgmtFrame(d, hdr)
		}
	case domain.FamilyData:
		if dh, ok := h.(DataFrameHandler); ok {
			return dh.HandleDataFrame(d)
		}
	case domain.FamilyCtrl:
		if ch, ok := h.(CtrlFrameHandler); ok {
			return ch.HandleCtrlFrame(d)
		}
	case domain.FamilyService:
		if sh, ok := h.(ServiceMsgHandler); ok {
			msg := frame.(*domain.ServiceMsg)
			return sh.HandleServiceMsg(d, msg.Hdr)
		}
	}
	return nil
}

func (a *Arena) runTypedStage(h Handler, d *Dispatch, frame domain.Frame) error {
	switch f := frame.(type) {
	case *domain.BeaconFrame:
		if bh, ok := h.(BeaconHandler); ok {
			return bh.HandleBeacon(d, f)
		}
	case *domain.ProbeResponseFrame:
		if ph, ok := h.(ProbeResponseHandler); ok {
			return ph.HandleProbeResponse(d, f)
		}
	case *domain.DeauthFrame:
		if dh, ok := h.(DeauthHandler); ok {
			return dh.HandleDeauth(d, f)
		}
	case *domain.ServiceMsg:
		if req, ok := f.Body.(*domain.ScanRequest); ok {
			if sh, ok := h.(ScanRequestHandler); ok {
				return sh.HandleMlmeScanReq(d, req)
			}
		}
	}
	return nil
}

func (a *Arena) nameOf(id NodeID) string {
	if id > 0 && int(id) < len(a.nodes) && a.nodes[id].h != nil {
		return a.nodes[id].h.HandlerName()
	}
	return "<gone>"
}

func mgmtHeader(frame domain.Frame) (domain.MgmtHeader, bool) {
	switch f := frame.(type) {
	case *domain.BeaconFrame:
		return f.Hdr, true
	case *domain.ProbeResponseFrame:
		return f.Hdr, true
	case *domain.DeauthFrame:
		return f.Hdr, true
	}
	return domain.MgmtHeader{}, false
}
