package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/smoke/internal/core/system"
)

var ErrDependencyCycle = errors.New("task dependency cycle")

// order groups tasks into levels with Kahn's algorithm. A task depending on
// system type T lands in a later level than every task whose scene belongs to
// a system of type T. Within a level, registration order is kept.
// Dependencies on types without tasks are ignored.
func order(tasks []system.Task) ([][]system.Task, error) {
	byType := make(map[system.Type][]int)
	for i, t := range tasks {
		typ := taskType(t)
		byType[typ] = append(byType[typ], i)
	}

	indegree := make([]int, len(tasks))
	successors := make([][]int, len(tasks))
	for i, t := range tasks {
		seen := make(map[int]bool)
		for _, dep := range t.Dependencies() {
			for _, j := range byType[dep] {
				if j == i || seen[j] {
					continue
				}
				seen[j] = true
				successors[j] = append(successors[j], i)
				indegree[i]++
			}
		}
	}

	var levels [][]system.Task
	placed := 0
	ready := make([]int, 0, len(tasks))
	for i := range tasks {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		level := make([]system.Task, 0, len(ready))
		var next []int
		for _, i := range ready {
			level = append(level, tasks[i])
			for _, s := range successors[i] {
				indegree[s]--
				if indegree[s] == 0 {
					next = append(next, s)
				}
			}
		}
		placed += len(ready)
		levels = append(levels, level)
		ready = sortedIndexes(next)
	}

	if placed != len(tasks) {
		var stuck []string
		for i, d := range indegree {
			if d > 0 {
				stuck = append(stuck, tasks[i].Name())
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(stuck, ", "))
	}
	return levels, nil
}

func taskType(t system.Task) system.Type {
	if sc := t.Scene(); sc != nil && sc.System() != nil {
		return sc.System().Type()
	}
	return system.TypeNull
}

// sortedIndexes restores registration order within a level.
func sortedIndexes(idx []int) []int {
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && idx[j] < idx[j-1]; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
	return idx
}
