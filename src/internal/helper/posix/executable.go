// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package posix

import (
	"os"
	"strings"
)

// ExecutableName returns the name the process was invoked as, for usage lines.
//
// Directories are stripped using both '/' and '\' as separators, so a Windows
// path reported on a Unix host is handled too, and a trailing ".exe" is removed.
//
// Parameters:
//   - fallback: Returned when os.Args[0] is missing or has no base name
//
// Returns:
//   - string: Clean executable name suitable for CLI usage
func ExecutableName(fallback string) string {
	if len(os.Args) == 0 {
		return fallback
	}
	return baseName(os.Args[0], fallback)
}

func baseName(arg0, fallback string) string {
	parts := strings.FieldsFunc(arg0, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	if len(parts) == 0 {
		return fallback
	}

	name := strings.TrimSuffix(parts[len(parts)-1], ".exe")
	if name == "" || name == "." || name == ".." {
		return fallback
	}
	return name
}
