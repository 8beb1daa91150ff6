package session

import (
	"fmt"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/flow"
	"github.com/flowcanvas/flowcanvas/pkg/nodedata"
	"github.com/flowcanvas/flowcanvas/pkg/router"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
)

// routeEdit describes how a route list change is mirrored onto the canvas.
type routeEdit struct {
	// removed is the index of a deleted route, or -1.
	removed int

	// record makes the canvas side of the edit undoable.
	record bool
}

// RouterAddRoute appends a default route to a router node. The new route
// takes the next Route_N handle; existing handles are unchanged.
func (s *Session) RouterAddRoute(id string) error {
	return s.editRoutes("router_add_route", id, routeEdit{removed: -1, record: true},
		func(routes []router.Route) ([]router.Route, error) {
			return router.AddRoute(routes), nil
		})
}

// RouterRemoveRoute deletes the route at index i. Edges leaving the removed
// route are dropped and edges of later routes follow their route to its new
// handle, in one undoable step.
func (s *Session) RouterRemoveRoute(id string, i int) error {
	return s.editRoutes("router_remove_route", id, routeEdit{removed: i, record: true},
		func(routes []router.Route) ([]router.Route, error) {
			return router.RemoveRoute(routes, i)
		})
}

// RouterAddCondition appends a default AND condition to route ri.
func (s *Session) RouterAddCondition(id string, ri int) error {
	return s.editRoutes("router_add_condition", id, routeEdit{removed: -1},
		func(routes []router.Route) ([]router.Route, error) {
			return router.AddCondition(routes, ri)
		})
}

// RouterRemoveCondition deletes condition ci of route ri. Removing the last
// condition of a route is rejected with router.ErrLastCondition.
func (s *Session) RouterRemoveCondition(id string, ri, ci int) error {
	return s.editRoutes("router_remove_condition", id, routeEdit{removed: -1},
		func(routes []router.Route) ([]router.Route, error) {
			return router.RemoveCondition(routes, ri, ci)
		})
}

// RouterUpdateCondition sets one field of condition ci in route ri.
func (s *Session) RouterUpdateCondition(id string, ri, ci int, field router.Field, value string) error {
	return s.editRoutes("router_update_condition", id, routeEdit{removed: -1},
		func(routes []router.Route) ([]router.Route, error) {
			return router.UpdateCondition(routes, ri, ci, field, value)
		})
}

// Routes returns the normalized routes of a router node.
func (s *Session) Routes(id string) ([]router.Route, error) {
	cfg, _, err := s.routerConfig("routes", id)
	if err != nil {
		return nil, err
	}
	return router.Normalize(cfg.Routes), nil
}

func (s *Session) editRoutes(command, id string, edit routeEdit, fn func([]router.Route) ([]router.Route, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, node, err := s.routerConfig(command, id)
	if err != nil {
		return s.finish(command, id, err)
	}

	routes := router.Normalize(cfg.Routes)
	next, err := fn(routes)
	if err != nil {
		return s.finish(command, id, canvas.NewInvalidError(err.Error(), err).
			WithResource(id).
			WithOperation(command))
	}

	derived := flow.Config{Routes: next}
	flow.ApplyHook(flow.KindRouter, &derived)
	if cfg.InputSchema != nil {
		derived.InputSchema = nil
	}

	kind := flow.KindRouter
	entry := s.data.Update(id, nodedata.Patch{Kind: &kind, Config: &derived})

	if node != nil {
		if err := s.mirrorRoutes(id, *node, derived, len(routes), edit); err != nil {
			return s.finish(command, id, err)
		}
	}

	s.publish(telemetry.Event{
		Type:    telemetry.EventTypeRoutesChanged,
		NodeID:  id,
		Message: fmt.Sprintf("Router has %d routes", len(entry.Config.Routes)),
		Data:    map[string]any{"command": command, "routes": len(entry.Config.Routes)},
	})
	return s.finish(command, id, nil)
}

// mirrorRoutes copies regenerated routes and schemas onto the canvas node.
func (s *Session) mirrorRoutes(id string, node canvas.Node, derived flow.Config, before int, edit routeEdit) error {
	if edit.removed < 0 {
		var opts []canvas.MutationOption
		if edit.record {
			opts = append(opts, canvas.Recorded())
		}
		return s.canvas.UpdateNodeConfig(id, derived, opts...)
	}

	cfg := node.Data.Config.Merge(derived)
	flow.ApplyHook(flow.KindRouter, &cfg)
	_, dropped, err := s.canvas.RemapSourceHandles(id, router.HandleRemap(before, edit.removed), true,
		canvas.WithNodeConfig(cfg))
	if err == nil && dropped > 0 {
		s.log.WithNodeID(id).Debugf("Dropped %d edges of removed route", dropped)
	}
	return err
}

// routerConfig returns the current config of a router node, preferring the
// node data store, and the canvas node when there is one.
func (s *Session) routerConfig(op, id string) (flow.Config, *canvas.Node, error) {
	entry, hasData := s.data.Get(id)
	node, onCanvas := s.canvas.Node(id)
	if !hasData && !onCanvas {
		return flow.Config{}, nil, canvas.NewReferentialError("node not found", nil).
			WithResource(id).
			WithOperation(op)
	}

	var nodePtr *canvas.Node
	kind := entry.Kind
	if onCanvas {
		nodePtr = &node
		kind = node.Type
	}
	if kind != flow.KindRouter {
		return flow.Config{}, nil, canvas.NewInvalidError("node is not a router", nil).
			WithResource(id).
			WithOperation(op).
			WithDetail("type", string(kind))
	}

	if hasData {
		return entry.Config, nodePtr, nil
	}
	return node.Data.Config, nodePtr, nil
}
