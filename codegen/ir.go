// Package codegen synthesizes dispatch tables and schema constants from
// annotated handler signatures. The generator parses a handler type's
// exported methods, derives each method's parameter schema from the Go
// parameter list, and emits a single generated file containing the method
// constants, the typed argument structs and the activation constructor.
//
// Because the published schema and the dispatch code are both derived from
// the same signatures, schema drift is structurally impossible.
//
// Handler signature conventions:
//
//	func (h *T) Name(ctx context.Context[, bc *bidi.Channel][, w *stream.Writer], params...) (R, error)
//
//   - a *bidi.Channel parameter (first after ctx) marks the method
//     bidirectional; it is omitted from the published parameter schema;
//   - a *stream.Writer parameter marks the method streaming and the
//     result list is a bare error;
//   - non-streaming methods return (R, error); the runtime wraps R in a
//     single Data item;
//   - pointer-typed parameters are optional (elided from required);
//   - uuid.UUID parameters publish as {"type":"string","format":"uuid"}.
//
// Doc directives, stripped from the published description:
//
//	plexus:param <name> <documentation...>
//	plexus:item <TypeName>   (streaming item schema; defaults to any)
package codegen

type (
	// ActivationData is everything the template needs to render one
	// generated activation file.
	ActivationData struct {
		// Package is the Go package the generated file belongs to.
		Package string
		// HandlerType is the handler's type name.
		HandlerType string
		// ConstructorName is the emitted constructor, New<Type>Activation.
		ConstructorName string
		// Namespace, Version and Description identify the activation.
		Namespace   string
		Version     string
		Description string
		// NeedsUUID reports whether argument structs reference uuid.UUID.
		NeedsUUID bool
		// Methods are the dispatched methods in declaration order.
		Methods []*MethodData
	}

	// MethodData describes one dispatched method.
	MethodData struct {
		// Name is the wire method name (snake_case of GoName).
		Name string
		// GoName is the handler's Go method name.
		GoName string
		// ConstName is the emitted method name constant.
		ConstName string
		// Description is the method documentation.
		Description string
		// Streaming and Bidirectional mirror the signature classification.
		Streaming     bool
		Bidirectional bool
		// Params are the published parameters in signature order.
		Params []*ParamData
		// ArgsStruct is the generated argument struct name.
		ArgsStruct string
		// ReturnSchema is the JSON Schema literal for each Data payload.
		ReturnSchema string
	}

	// ParamData describes one published parameter.
	ParamData struct {
		// Name is the wire parameter name (snake_case).
		Name string
		// GoField is the argument struct field name.
		GoField string
		// GoType is the field's Go type as written in the source.
		GoType string
		// Schema is the JSON Schema literal for the parameter value.
		Schema string
		// Required is false for pointer-typed (nullable) parameters.
		Required bool
		// Doc is the plexus:param documentation, when any.
		Doc string
	}
)
