package ir

// EncodeCompiled converts a compiled constraint to the map form consumed by
// MarshalCanonical, golden files and JSON output.
//
// Expressions are encoded as their printed source text. With includeIDs
// false, index ids and the emission expressions (which embed them) are
// omitted; this is the form Fingerprint hashes.
func EncodeCompiled(cc *CompiledConstraint, includeIDs bool) map[string]any {
	m := map[string]any{
		"source":  cc.Source,
		"expr_id": cc.ExprID,
	}
	if cc.NormalizedExpr != nil {
		m["normalized"] = Print(cc.NormalizedExpr)
	}
	if cc.Index != nil {
		m["index"] = EncodeIndex(cc.Index, includeIDs)
	}
	if len(cc.Bindings) > 0 {
		bindings := make([]any, 0, len(cc.Bindings))
		for _, b := range cc.Bindings {
			bindings = append(bindings, EncodeBinding(b, includeIDs))
		}
		m["bindings"] = bindings
	}
	if includeIDs && cc.Emission != nil {
		m["emission"] = Print(cc.Emission)
	}
	return m
}

// EncodeIndex converts an index descriptor to map form.
func EncodeIndex(idx *IndexDescriptor, includeID bool) map[string]any {
	m := map[string]any{
		"kind":     string(idx.Kind),
		"key_type": idx.KeyType.String(),
	}
	if includeID {
		m["id"] = idx.ID
	}
	if idx.Op != RelNone {
		m["op"] = string(idx.Op)
	}
	if idx.FieldName != "" {
		m["field"] = idx.FieldName
	}
	if idx.LeftExtractor != nil {
		m["left_extractor"] = Print(idx.LeftExtractor)
	}
	if idx.Extractor != nil {
		m["extractor"] = Print(idx.Extractor)
	}
	if idx.RightValue != nil {
		m["right_value"] = Print(idx.RightValue)
	}
	return m
}

// EncodeBinding converts a binding to map form.
func EncodeBinding(b BindingExpr, includeEmission bool) map[string]any {
	m := map[string]any{
		"variable": b.Variable,
	}
	if b.Type.IsSet() {
		m["type"] = b.Type.String()
	}
	if b.Expr != nil {
		m["expr"] = Print(b.Expr)
	}
	if includeEmission && b.Emission != nil {
		m["emission"] = Print(b.Emission)
	}
	return m
}
