package runner

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/inputgen"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

var (
	_ TaskSource = (*CatalogSource)(nil)
	_ TaskSource = (*GenerativeSource)(nil)
	_ Catalog    = (*CatalogSource)(nil)
)

// TaskSource produces the tasks of a run. Next returns false once there is no
// more work, and keeps returning false afterwards. A source is only ever
// called from the dispatcher goroutine.
type TaskSource interface {
	Next() (types.Task, bool)
}

// Catalog is implemented by finite sources whose task IDs are indices into
// Cases. It lets the coordinator name the cases a cancelled run never reached.
type Catalog interface {
	Cases() []types.TestCase
}

// CommandSpec describes how the candidate program is invoked for each input.
type CommandSpec struct {
	Shell   string
	Command string
	Timeout time.Duration
}

// Build returns the command that feeds input to the candidate program.
func (s CommandSpec) Build(input []byte) types.Command {
	shell := s.Shell
	if shell == "" {
		shell = DefaultShell
	}
	return types.ShellCommand(shell, s.Command, input, s.Timeout)
}

// CatalogSource hands out every test case exactly once, picking uniformly at
// random among the cases not handed out yet.
type CatalogSource struct {
	cases     []types.TestCase
	remaining []int
	spec      CommandSpec
	rng       *rand.Rand
}

// NewCatalogSource creates a source over cases. The task ID of a case is its
// index in cases.
func NewCatalogSource(cases []types.TestCase, spec CommandSpec, rng *rand.Rand) *CatalogSource {
	remaining := make([]int, len(cases))
	for i := range remaining {
		remaining[i] = i
	}
	return &CatalogSource{
		cases:     cases,
		remaining: remaining,
		spec:      spec,
		rng:       rng,
	}
}

func (s *CatalogSource) Next() (types.Task, bool) {
	if len(s.remaining) == 0 {
		return types.Task{}, false
	}

	pick := s.rng.IntN(len(s.remaining))
	idx := s.remaining[pick]
	last := len(s.remaining) - 1
	s.remaining[pick] = s.remaining[last]
	s.remaining = s.remaining[:last]

	tc := s.cases[idx]
	return types.Task{
		ID:          types.TaskID(idx),
		Name:        tc.Name,
		Command:     s.spec.Build(tc.StdinBytes()),
		Expected:    tc.Output,
		HasExpected: tc.HasOutput,
	}, true
}

// Cases returns the full catalog in its original order.
func (s *CatalogSource) Cases() []types.TestCase {
	return s.cases
}

// Len returns the number of cases not handed out yet.
func (s *CatalogSource) Len() int {
	return len(s.remaining)
}

// GenerativeSource evaluates an input template afresh for every task. It
// never runs out of work.
type GenerativeSource struct {
	template inputgen.Node
	spec     CommandSpec
	rng      *rand.Rand
	newline  bool
	nextID   uint64
}

// NewGenerativeSource creates a source rendering template with rng. When
// newline is set every generated input ends with a newline.
func NewGenerativeSource(template inputgen.Node, spec CommandSpec, rng *rand.Rand, newline bool) *GenerativeSource {
	return &GenerativeSource{
		template: template,
		spec:     spec,
		rng:      rng,
		newline:  newline,
	}
}

func (s *GenerativeSource) Next() (types.Task, bool) {
	input := inputgen.Render(s.template, s.rng)
	if s.newline {
		input += "\n"
	}

	id := types.TaskID(s.nextID)
	s.nextID++
	return types.Task{
		ID:      id,
		Name:    fmt.Sprintf("fuzz-%d", uint64(id)),
		Command: s.spec.Build([]byte(input)),
	}, true
}
