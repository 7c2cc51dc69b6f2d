package invite

import "strings"

// mergeDocuments merges partial into existing without mutating either argument.
// Nested objects merge recursively; scalars and arrays replace wholesale. Keys
// absent from partial keep their existing value.
func mergeDocuments(existing, partial map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(partial))
	for key, value := range existing {
		merged[key] = value
	}
	for key, incoming := range partial {
		current, ok := merged[key]
		if !ok {
			merged[key] = incoming
			continue
		}
		currentMap, currentIsMap := current.(map[string]any)
		incomingMap, incomingIsMap := incoming.(map[string]any)
		if currentIsMap && incomingIsMap {
			merged[key] = mergeDocuments(currentMap, incomingMap)
			continue
		}
		merged[key] = incoming
	}
	return merged
}

// SetField places value at a dot-separated path inside document, creating
// intermediate objects as needed. An existing non-object on the path is replaced.
func SetField(document map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := document
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}
