package flow

import "github.com/flowcanvas/flowcanvas/pkg/router"

// Kind is the node variant tag. It equals the node type name used by
// workflow definitions and the type registry.
type Kind string

const (
	KindInput               Kind = "InputNode"
	KindOutput              Kind = "OutputNode"
	KindSingleLLMCall       Kind = "SingleLLMCallNode"
	KindStructuredOutputLLM Kind = "StructuredOutputLLMNode"
	KindRouter              Kind = "RouterNode"
	KindBranchSolveMerge    Kind = "BranchSolveMergeNode"
	KindHumanIntervention   Kind = "HumanInterventionNode"
)

// Kinds lists the built-in node kinds.
var Kinds = []Kind{
	KindInput,
	KindOutput,
	KindSingleLLMCall,
	KindStructuredOutputLLM,
	KindRouter,
	KindBranchSolveMerge,
	KindHumanIntervention,
}

// Known reports whether k is one of the built-in kinds.
func (k Kind) Known() bool {
	_, ok := hooks[k]
	return ok
}

// IsMultiOutput reports whether nodes of this kind expose several named
// outputs whose handles come from the output schema instead of the title.
func (k Kind) IsMultiOutput() bool {
	return k == KindRouter
}

// Hook normalizes a config after it was constructed, loaded or merged.
type Hook func(cfg *Config)

// hooks holds the post-construction hook of each kind. Kinds without special
// requirements map to a no-op.
var hooks = map[Kind]Hook{
	KindInput:               ensureOutputSchema,
	KindOutput:              noop,
	KindSingleLLMCall:       noop,
	KindStructuredOutputLLM: ensureOutputSchema,
	KindRouter:              normalizeRouter,
	KindBranchSolveMerge:    noop,
	KindHumanIntervention:   noop,
}

// ApplyHook runs the post-construction hook registered for kind on cfg.
// Unknown kinds are left untouched.
func ApplyHook(kind Kind, cfg *Config) {
	if h, ok := hooks[kind]; ok {
		h(cfg)
	}
}

func noop(*Config) {}

// ensureOutputSchema guarantees the node exposes a (possibly empty) output
// schema that downstream nodes can introspect.
func ensureOutputSchema(cfg *Config) {
	if cfg.OutputSchema == nil {
		cfg.OutputSchema = Schema{}
	}
}

// RouterInputSchema is the input schema given to routers that declare none.
var RouterInputSchema = Schema{"input": "any"}

func normalizeRouter(cfg *Config) {
	cfg.Routes = router.Normalize(cfg.Routes)
	cfg.OutputSchema = Schema(router.OutputSchema(cfg.Routes))
	if cfg.InputSchema == nil {
		cfg.InputSchema = RouterInputSchema.Clone()
	}
}
