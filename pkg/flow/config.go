package flow

import (
	"encoding/json"
	"fmt"

	"github.com/mohae/deepcopy"

	"github.com/flowcanvas/flowcanvas/pkg/router"
)

// Known config keys. Every other key lands in Config.Extra.
const (
	KeyTitle        = "title"
	KeyInputSchema  = "input_schema"
	KeyOutputSchema = "output_schema"
	KeyRoutes       = "routes"
	KeyLLMInfo      = "llm_info"
)

// LLMInfo selects and tunes the model used by LLM node kinds.
type LLMInfo struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

// Config is a node's configuration payload. Shapes shared by every kind
// (title, schemas) and the kind-specific shapes the editor reasons about
// (router routes, LLM settings) are typed; anything else is kept verbatim in
// Extra. On the wire all keys are flat.
type Config struct {
	Title        string
	InputSchema  Schema
	OutputSchema Schema

	// Routes is used by router nodes.
	Routes []router.Route

	// LLM is used by LLM node kinds.
	LLM *LLMInfo

	Extra map[string]any
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := Config{
		Title:        c.Title,
		InputSchema:  c.InputSchema.Clone(),
		OutputSchema: c.OutputSchema.Clone(),
		Routes:       router.Clone(c.Routes),
	}
	if c.LLM != nil {
		llm := *c.LLM
		out.LLM = &llm
	}
	if c.Extra != nil {
		out.Extra = deepcopy.Copy(c.Extra).(map[string]any)
	}
	return out
}

// Merge overlays patch onto c one key deep: every key present in patch
// replaces the same key in c, and keys absent from patch are preserved.
// Values are not merged recursively, so a patched schema replaces the whole
// schema stored under that key.
func (c Config) Merge(patch Config) Config {
	out := c.Clone()
	if patch.Title != "" {
		out.Title = patch.Title
	}
	if patch.InputSchema != nil {
		out.InputSchema = patch.InputSchema.Clone()
	}
	if patch.OutputSchema != nil {
		out.OutputSchema = patch.OutputSchema.Clone()
	}
	if patch.Routes != nil {
		out.Routes = router.Clone(patch.Routes)
	}
	if patch.LLM != nil {
		llm := *patch.LLM
		out.LLM = &llm
	}
	if len(patch.Extra) > 0 {
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(patch.Extra))
		}
		for k, v := range patch.Extra {
			out.Extra[k] = deepcopy.Copy(v)
		}
	}
	return out
}

// Get returns the value stored under a flat config key.
func (c Config) Get(key string) (any, bool) {
	switch key {
	case KeyTitle:
		return c.Title, c.Title != ""
	case KeyInputSchema:
		return c.InputSchema, c.InputSchema != nil
	case KeyOutputSchema:
		return c.OutputSchema, c.OutputSchema != nil
	case KeyRoutes:
		return c.Routes, c.Routes != nil
	case KeyLLMInfo:
		return c.LLM, c.LLM != nil
	}
	v, ok := c.Extra[key]
	return v, ok
}

// MarshalJSON writes the config as a flat object.
func (c Config) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.Extra)+5)
	for k, v := range c.Extra {
		m[k] = v
	}
	if c.Title != "" {
		m[KeyTitle] = c.Title
	}
	if c.InputSchema != nil {
		m[KeyInputSchema] = c.InputSchema
	}
	if c.OutputSchema != nil {
		m[KeyOutputSchema] = c.OutputSchema
	}
	if c.Routes != nil {
		m[KeyRoutes] = c.Routes
	}
	if c.LLM != nil {
		m[KeyLLMInfo] = c.LLM
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a flat config object.
func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Config{}
	for key, value := range raw {
		var err error
		switch key {
		case KeyTitle:
			err = json.Unmarshal(value, &c.Title)
		case KeyInputSchema:
			c.InputSchema, err = decodeSchema(value)
		case KeyOutputSchema:
			c.OutputSchema, err = decodeSchema(value)
		case KeyRoutes:
			err = json.Unmarshal(value, &c.Routes)
		case KeyLLMInfo:
			if string(value) != "null" {
				c.LLM = &LLMInfo{}
				err = json.Unmarshal(value, c.LLM)
			}
		default:
			var v any
			err = json.Unmarshal(value, &v)
			if err == nil {
				if c.Extra == nil {
					c.Extra = make(map[string]any)
				}
				c.Extra[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// decodeSchema accepts schema values of any JSON type and renders non-string
// type names with fmt, so {"count": "int"} and {"count": 1} both decode.
func decodeSchema(data []byte) (Schema, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	s := make(Schema, len(raw))
	for k, v := range raw {
		if str, ok := v.(string); ok {
			s[k] = str
			continue
		}
		s[k] = fmt.Sprint(v)
	}
	return s, nil
}
