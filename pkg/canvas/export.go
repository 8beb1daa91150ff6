package canvas

import "github.com/flowcanvas/flowcanvas/pkg/workflow"

// Export converts the current graph back into a workflow definition. Links
// always carry explicit handles so that multi-output nodes survive a round
// trip through Initialize.
func (c *Canvas) Export() *workflow.Definition {
	c.mu.Lock()
	defer c.mu.Unlock()

	def := &workflow.Definition{
		Nodes: make([]workflow.NodeDefinition, 0, len(c.st.nodes)),
		Links: make([]workflow.Link, 0, len(c.st.edges)),
	}
	for _, n := range c.st.nodes {
		def.Nodes = append(def.Nodes, workflow.NodeDefinition{
			ID:          n.ID,
			NodeType:    string(n.Type),
			Coordinates: n.Position,
			Config:      n.Data.Config.Clone(),
			Title:       n.Data.Title,
		})
	}
	for _, e := range c.st.edges {
		def.Links = append(def.Links, workflow.Link{
			SourceID:     e.Source,
			TargetID:     e.Target,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		})
	}
	return def
}
