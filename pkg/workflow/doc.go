// Package workflow reads and writes stored workflow definitions.
//
// # Overview
//
// A definition lists node descriptors (id, node_type, coordinates, config)
// and links between them. Documents may be JSON or YAML. Decoding runs in
// three steps:
//
//  1. Parse the document generically.
//  2. Check it against the CUE #Definition schema.
//  3. Decode into Definition and run struct validation plus referential
//     checks (unique node ids, links pointing at declared nodes).
//
// # Usage Example
//
//	def, err := workflow.LoadFile("workflows/triage.yaml")
//	if err != nil {
//	    return err
//	}
//	result := canvas.Initialize(def)
//
// # Watching
//
// Watcher reloads a file on change with a short debounce so that editors
// writing in several steps trigger a single reload.
package workflow
