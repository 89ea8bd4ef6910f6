package logging

// extraToZapFields flattens the extra-key map into zap's alternating
// key/value argument form.
func extraToZapFields(extra map[ExtraKey]any) []any {
	fields := make([]any, 0, 2*len(extra))
	for k, v := range extra {
		fields = append(fields, string(k), v)
	}
	return fields
}

func extraToZerologFields(extra map[ExtraKey]any) map[string]any {
	fields := make(map[string]any, len(extra))
	for k, v := range extra {
		fields[string(k)] = v
	}
	return fields
}
