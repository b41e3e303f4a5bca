package enums

import (
	"fmt"
	"slices"
	"strings"
)

func known[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

// parse matches raw against set after trimming and lowercasing.
func parse[T ~string](set []T, raw, kind string) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	if known(set, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
