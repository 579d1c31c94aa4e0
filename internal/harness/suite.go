package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int            `json:"total_scenarios"`
	Passed         int            `json:"passed"`
	Failed         int            `json:"failed"`
	Failures       []SuiteFailure `json:"failures,omitempty"`
}

// SuiteFailure is one scenario that failed to load, run or pass.
type SuiteFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// OK reports whether every scenario passed.
func (r *SuiteResult) OK() bool { return r.Failed == 0 }

// DiscoverScenarios returns the .yaml and .yml files under path, sorted. A
// file path is returned as is.
func DiscoverScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := strings.ToLower(filepath.Ext(p)); ext == ".yaml" || ext == ".yml" {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	return paths, nil
}

// ResultFunc receives each scenario outcome of a suite run. r is nil when
// the scenario failed to load.
type ResultFunc func(path string, r *Result, err error)

// RunSuite loads and runs every scenario under path. onResult, if set, is
// called after each scenario.
func RunSuite(ctx context.Context, path string, onResult ResultFunc, opts ...Option) (*SuiteResult, error) {
	paths, err := DiscoverScenarios(path)
	if err != nil {
		return nil, err
	}
	return RunPaths(ctx, paths, onResult, opts...)
}

// RunPaths runs the scenario files in order.
func RunPaths(ctx context.Context, paths []string, onResult ResultFunc, opts ...Option) (*SuiteResult, error) {
	suite := &SuiteResult{}
	fail := func(p, msg string) {
		suite.Failed++
		suite.Failures = append(suite.Failures, SuiteFailure{ScenarioPath: p, Error: msg})
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return suite, err
		}
		suite.TotalScenarios++

		scenario, err := LoadScenario(p)
		if err != nil {
			fail(p, fmt.Sprintf("failed to load scenario: %v", err))
			if onResult != nil {
				onResult(p, nil, err)
			}
			continue
		}

		result, err := Run(ctx, scenario, opts...)
		if onResult != nil {
			onResult(p, result, err)
		}
		switch {
		case err != nil:
			fail(p, fmt.Sprintf("scenario execution failed: %v", err))
		case !result.Pass:
			fail(p, strings.Join(result.Errors, "; "))
		default:
			suite.Passed++
		}
	}
	return suite, nil
}
