package runner

import (
	"errors"
	"fmt"
	"os"
	"slices"

	ps "github.com/mitchellh/go-ps"
)

// descendants returns the pids of every process below root, deepest first.
func descendants(root int) ([]int, error) {
	processes, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	children := make(map[int][]int, len(processes))
	for _, p := range processes {
		children[p.PPid()] = append(children[p.PPid()], p.Pid())
	}

	var (
		found   []int
		pending = []int{root}
	)

	for len(pending) > 0 {
		parent := pending[0]
		pending = pending[1:]

		for _, child := range children[parent] {
			if child == root || slices.Contains(found, child) {
				continue
			}

			found = append(found, child)
			pending = append(pending, child)
		}
	}

	slices.Reverse(found)

	return found, nil
}

// killTree kills every descendant of pid and then pid itself.
// A failed process listing does not prevent the parent from being killed.
func killTree(pid int) error {
	var errs []error

	children, err := descendants(pid)
	if err != nil {
		errs = append(errs, err)
	}

	for _, child := range children {
		if err = killPID(child); err != nil {
			errs = append(errs, err)
		}
	}

	if err = killPID(pid); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func killPID(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return nil //nolint:nilerr // Already gone.
	}

	if err = process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %d: %w", pid, err)
	}

	return nil
}
