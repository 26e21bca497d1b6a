package process

import (
	"maps"
	"slices"
	"strings"
)

// MergeEnvironment resolves an environment overlay against the ambient
// environment and returns the merged set in "KEY=value" form, sorted by
// key.
//
// With clear=false the merged set starts from ambient. A string overlay
// value overrides the ambient value; a nil value removes the key even if
// ambient-inherited.
//
// With clear=true the merged set starts empty. A string overlay value is
// added as-is; a nil value inherits the ambient value of that key when
// present, which is the only way ambient values survive a clear.
func MergeEnvironment(ambient []string, overlay map[string]*string, clear bool) []string {
	ambientMap := make(map[string]string, len(ambient))

	for _, entry := range ambient {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}

		ambientMap[key] = value
	}

	var merged map[string]string

	if clear {
		merged = make(map[string]string, len(overlay))

		for key, value := range overlay {
			if value == nil {
				if ambientValue, ok := ambientMap[key]; ok {
					merged[key] = ambientValue
				}

				continue
			}

			merged[key] = *value
		}
	} else {
		merged = ambientMap

		for key, value := range overlay {
			if value == nil {
				delete(merged, key)

				continue
			}

			merged[key] = *value
		}
	}

	entries := make([]string, 0, len(merged))

	for _, key := range slices.Sorted(maps.Keys(merged)) {
		entries = append(entries, key+"="+merged[key])
	}

	return entries
}
