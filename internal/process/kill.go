package process

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/hashicorp/go-multierror"
	ps "github.com/mitchellh/go-ps"
)

// descendants returns every process below root in the process table,
// parents before children.
func descendants(root int) ([]int, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	children := make(map[int][]int)
	for _, p := range procs {
		children[p.PPid()] = append(children[p.PPid()], p.Pid())
	}

	var out []int
	queue := []int{root}
	seen := map[int]bool{root: true}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range children[pid] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out, nil
}

// killTree kills proc and all of its descendants. The descendant list is
// taken before proc is killed, while the parent links are still intact.
func killTree(proc *os.Process) error {
	var result *multierror.Error

	pids, err := descendants(proc.Pid)
	if err != nil {
		result = multierror.Append(result, err)
	}

	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		result = multierror.Append(result, fmt.Errorf("kill %d: %w", proc.Pid, err))
	}

	for _, pid := range pids {
		p, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH) {
			result = multierror.Append(result, fmt.Errorf("kill %d: %w", pid, err))
		}
	}

	return result.ErrorOrNil()
}
