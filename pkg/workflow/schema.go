package workflow

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// definitionSchema is the document-level contract of a stored workflow.
// It is checked before decoding so that shape errors point at document paths.
const definitionSchema = `
#Coordinates: {
	x: number
	y: number
}

#Node: {
	id:           string & !=""
	node_type:    string & !=""
	coordinates?: #Coordinates
	config?:      {...} | null
	title?:       string | null
	...
}

#Link: {
	source_id:      string & !=""
	target_id:      string & !=""
	source_handle?: string
	target_handle?: string
	...
}

#TestInput: {
	id: string & !=""
	...
}

#Definition: {
	nodes:        [...#Node]
	links:        [...#Link] | *[]
	test_inputs?: [...#TestInput]
	...
}
`

// SchemaValidator checks raw workflow documents against the CUE contract.
type SchemaValidator struct {
	mu         sync.Mutex
	ctx        *cue.Context
	definition cue.Value
}

// NewSchemaValidator compiles the built-in definition schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(definitionSchema)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile definition schema: %w", err)
	}

	def := val.LookupPath(cue.ParsePath("#Definition"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("definition schema has no #Definition: %w", err)
	}

	return &SchemaValidator{
		ctx:        ctx,
		definition: def,
	}, nil
}

// Validate unifies a generically decoded document with #Definition.
func (sv *SchemaValidator) Validate(doc any) error {
	// cue.Context is not safe for concurrent use.
	sv.mu.Lock()
	defer sv.mu.Unlock()

	dataVal := sv.ctx.Encode(doc)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	unified := sv.definition.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("document does not match workflow schema: %w", err)
	}
	return nil
}
