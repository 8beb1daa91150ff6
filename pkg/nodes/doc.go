// Package nodes provides the default node type registry. It implements
// canvas.NodeFactory from a YAML catalog of type specs; the built-in catalog
// is embedded and can be extended or overridden with LoadCatalogFile.
package nodes
