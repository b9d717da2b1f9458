package extract

// additionalProperties returns the keys of a raw API record that the
// flattened row shape does not claim. They ride along in the
// additional_properties column so schema drift on the API side is not lost.
func additionalProperties(record map[string]any, known ...string) map[string]any {
	knownSet := make(map[string]struct{}, len(known))
	for _, key := range known {
		knownSet[key] = struct{}{}
	}

	extra := make(map[string]any)
	for key, value := range record {
		if _, ok := knownSet[key]; !ok {
			extra[key] = value
		}
	}
	return extra
}
