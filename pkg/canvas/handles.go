package canvas

import "github.com/flowcanvas/flowcanvas/pkg/flow"

// RenameSchemaField renames a field of the node's input or output schema and
// rewrites the handles of edges that referenced it. Renaming an input field
// rewrites the target handle of edges entering the node; renaming an output
// field rewrites both handles of edges leaving it, since the two ends share
// one name. The rename is recorded as a single undoable step. It returns the
// number of edges rewritten.
func (c *Canvas) RenameSchemaField(nodeID string, dir SchemaDirection, oldName, newName string) (int, error) {
	if !dir.Valid() {
		return 0, NewInvalidError("unknown schema direction", nil).
			WithResource(nodeID).
			WithOperation("rename_schema_field").
			WithDetail("direction", string(dir))
	}
	if newName == "" {
		return 0, NewInvalidError("schema field name is required", nil).
			WithResource(nodeID).
			WithOperation("rename_schema_field")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.st.nodeIndex(nodeID)
	if i < 0 {
		return 0, nodeNotFound("rename_schema_field", nodeID)
	}
	if oldName == newName {
		return 0, nil
	}

	c.st.record()

	n := c.st.nodes[i].Clone()
	switch dir {
	case DirectionInput:
		n.Data.Config.InputSchema = renameKey(n.Data.Config.InputSchema, oldName, newName)
	case DirectionOutput:
		n.Data.Config.OutputSchema = renameKey(n.Data.Config.OutputSchema, oldName, newName)
	}
	c.st.nodes = replaceNode(c.st.nodes, i, n)

	edges := cloneEdges(c.st.edges)
	rewritten := 0
	for j := range edges {
		e := &edges[j]
		switch {
		case dir == DirectionInput && e.Target == nodeID && e.TargetHandle == oldName:
			e.TargetHandle = newName
			rewritten++
		case dir == DirectionOutput && e.Source == nodeID && e.SourceHandle == oldName:
			e.SourceHandle = newName
			e.TargetHandle = newName
			rewritten++
		}
	}
	c.st.edges = edges
	return rewritten, nil
}

// RemapSourceHandles renames the output handles of edges leaving nodeID in
// one undoable step. Handles absent from mapping are kept, or the edge is
// dropped when dropUnmapped is set. Pass WithNodeConfig to replace the
// node's config in the same step. It returns the number of edges rewritten
// and dropped.
func (c *Canvas) RemapSourceHandles(nodeID string, mapping map[string]string, dropUnmapped bool, opts ...MutationOption) (rewritten, dropped int, err error) {
	m := buildMutation(opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.st.nodeIndex(nodeID)
	if i < 0 {
		return 0, 0, nodeNotFound("remap_handles", nodeID)
	}

	c.st.record()

	if m.config != nil {
		n := c.st.nodes[i].Clone()
		n.Data.Config = *m.config
		c.st.nodes = replaceNode(c.st.nodes, i, n)
	}

	edges := make([]Edge, 0, len(c.st.edges))
	for _, e := range c.st.edges {
		if e.Source != nodeID {
			edges = append(edges, e)
			continue
		}
		to, ok := mapping[e.SourceHandle]
		switch {
		case !ok && dropUnmapped:
			dropped++
			continue
		case ok && to != e.SourceHandle:
			e.SourceHandle = to
			e.TargetHandle = to
			rewritten++
		}
		edges = append(edges, e)
	}
	c.st.edges = edges
	return rewritten, dropped, nil
}

func renameKey(s flow.Schema, oldName, newName string) flow.Schema {
	if s == nil {
		return nil
	}
	v, ok := s[oldName]
	if !ok {
		return s
	}
	out := s.Clone()
	delete(out, oldName)
	out[newName] = v
	return out
}
