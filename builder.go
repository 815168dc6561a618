package holdpoint

import (
	"fmt"

	"github.com/holdpoint/holdpoint/pkg/api"
)

// DefinitionBuilder provides a fluent API for defining workflows:
//
//	def := holdpoint.NewDefinition("check-in-guest").
//	    Industry("hotel").
//	    Tags("front-desk").
//	    RequiredField("guest_name", holdpoint.FieldString).
//	    Field("room", holdpoint.FieldString).
//	    Step("assign-room", assignRoom).
//	    GateStep("create-folio", createFolio).
//	    Definition()
//
//	if err := eng.Register(def); err != nil {
//	    log.Fatal(err)
//	}
type DefinitionBuilder struct {
	def api.Definition
}

// NewDefinition creates a builder for a workflow with the given name.
func NewDefinition(name string) *DefinitionBuilder {
	return &DefinitionBuilder{
		def: api.Definition{
			Name:  name,
			Steps: make([]api.StepDefinition, 0),
		},
	}
}

// Name returns the workflow name.
func (b *DefinitionBuilder) Name() string {
	return b.def.Name
}

// Industry sets the industry/domain tag used for discovery.
func (b *DefinitionBuilder) Industry(industry string) *DefinitionBuilder {
	b.def.Industry = industry
	return b
}

// Tags appends free-form semantic tags used for discovery.
func (b *DefinitionBuilder) Tags(tags ...string) *DefinitionBuilder {
	b.def.Tags = append(b.def.Tags, tags...)
	return b
}

// Field declares an optional state field. Absent fields are zero-filled
// at validation time.
func (b *DefinitionBuilder) Field(name string, t FieldType) *DefinitionBuilder {
	b.def.Fields = append(b.def.Fields, api.FieldSpec{Name: name, Type: t})
	return b
}

// RequiredField declares a state field the caller must supply.
func (b *DefinitionBuilder) RequiredField(name string, t FieldType) *DefinitionBuilder {
	b.def.Fields = append(b.def.Fields, api.FieldSpec{Name: name, Type: t, Required: true})
	return b
}

// Start names the entry step. Unset, execution begins at the first step.
func (b *DefinitionBuilder) Start(stepName string) *DefinitionBuilder {
	b.def.Start = stepName
	return b
}

// Step appends a basic step.
func (b *DefinitionBuilder) Step(name string, fn StepFunc) *DefinitionBuilder {
	return b.add(name, fn, false)
}

// GateStep appends a step that is risk-checked before it runs. Adding any
// gate marks the definition as interrupt-capable.
func (b *DefinitionBuilder) GateStep(name string, fn StepFunc) *DefinitionBuilder {
	b.def.Capabilities.Interrupts = true
	b.def.Capabilities.RequiresApproval = true
	return b.add(name, fn, true)
}

func (b *DefinitionBuilder) add(name string, fn StepFunc, gate bool) *DefinitionBuilder {
	if name == "" {
		panic("holdpoint: step name must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("holdpoint: step %q has nil function", name))
	}

	b.def.Steps = append(b.def.Steps, api.StepDefinition{
		Name: name,
		Fn:   fn,
		Gate: gate,
	})
	return b
}

// Definition returns the built workflow definition.
func (b *DefinitionBuilder) Definition() Definition {
	return b.def
}

// Register registers the built workflow with the given engine.
func (b *DefinitionBuilder) Register(eng Engine) error {
	return eng.Register(b.def)
}

// MustRegister is like Register but panics on error. Useful for
// initialization in main().
func (b *DefinitionBuilder) MustRegister(eng Engine) {
	if err := b.Register(eng); err != nil {
		panic(err)
	}
}
