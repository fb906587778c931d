package main

import (
	"fmt"
	"regexp"

	"sourcescan/config"
)

// extensionArg matches arguments such as ".py" or ".tar.gz".
var extensionArg = regexp.MustCompile(`^\.[A-Za-z0-9_+-]+(\.[A-Za-z0-9_+-]+)*$`)

// splitArgs separates the directory argument from extensions given
// space-separated after --extensions, which the flag parser leaves as
// positional arguments. An argument naming an existing directory is never
// taken as an extension.
func splitArgs(args []string, isDir func(string) bool) (string, []string, error) {
	var dirs, exts []string

	for _, arg := range args {
		if extensionArg.MatchString(arg) && !isDir(arg) {
			exts = append(exts, arg)
			continue
		}
		dirs = append(dirs, arg)
	}

	switch len(dirs) {
	case 0:
		return "", nil, &config.ConfigError{Err: fmt.Errorf("a directory to analyse is required")}
	case 1:
		return dirs[0], exts, nil
	default:
		return "", nil, &config.ConfigError{Err: fmt.Errorf("expected one directory, got %d: %v", len(dirs), dirs)}
	}
}
