// Package router implements the route and condition model of the conditional
// router node.
//
// A router holds an ordered list of routes. Each route is an ordered list of
// conditions joined by AND/OR connectives, and each route exposes one output
// handle named after its position (Route_1, Route_2, ...). The output schema
// is always derived from the route list with OutputSchema and must be
// recomputed after every structural change, so callers never edit it by hand.
//
// All edit functions are pure: they return a new route slice and leave their
// input untouched, which lets the caller record an undo snapshot before
// installing the result.
//
//	routes := router.Normalize(loaded)
//	routes = router.AddRoute(routes)
//	routes, err := router.RemoveCondition(routes, 0, 0) // ErrLastCondition
//	schema := router.OutputSchema(routes)
package router
