/*
Copyright © 2025 NVIDIA Corporation
SPDX-License-Identifier: Apache-2.0
*/
package runner

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Fake is a scripted Runner for tests. Responses are keyed by the full
// command line ("name arg1 arg2 ...") and consumed in order, so repeated
// invocations of the same command can observe different results. A command
// with no scripted response succeeds with empty output.
type Fake struct {
	// Responses maps a command line to the sequence of results to return.
	Responses map[string][]Result
	// Errs maps a command line to an execution error (binary missing etc.).
	Errs map[string]error
	// Missing lists names LookPath fails to resolve.
	Missing []string
	// Calls records every command line executed, in order.
	Calls []string
}

// Run returns the next scripted result for the command line.
func (f *Fake) Run(_ context.Context, name string, args ...string) (Result, error) {
	key := commandLine(name, args)
	f.Calls = append(f.Calls, key)

	if err, ok := f.Errs[key]; ok {
		return Result{ExitCode: -1}, err
	}
	if rs := f.Responses[key]; len(rs) > 0 {
		res := rs[0]
		f.Responses[key] = rs[1:]
		return res, nil
	}
	return Result{}, nil
}

// LookPath resolves any name not listed in Missing to a /usr/bin path.
func (f *Fake) LookPath(file string) (string, error) {
	if slices.Contains(f.Missing, file) {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", file)
	}
	return "/usr/bin/" + file, nil
}

// Called reports whether any recorded call starts with prefix.
func (f *Fake) Called(prefix string) bool {
	return f.CallCount(prefix) > 0
}

// CallCount returns how many recorded calls start with prefix.
func (f *Fake) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
