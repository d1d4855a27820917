package utils

import (
	"regexp"
)

// CompileOptionalRegex compiles a single pattern, returning nil for an empty one.
func CompileOptionalRegex(name, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, WrapErrorf(ErrConfigValidation, "invalid %s pattern '%s': %v", name, pattern, err)
	}
	return re, nil
}
