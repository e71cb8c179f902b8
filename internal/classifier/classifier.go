// Package classifier answers whether a taxon descends from the Viruses
// subtree by walking the taxonomy parent chain. The walk is iterative with a
// visited-set guard so a corrupt reference file produces a named error
// instead of an infinite loop.
package classifier

import (
	"fmt"

	"github.com/hipc-validation/virus-strain-validator/internal/taxonomy"
	apperr "github.com/hipc-validation/virus-strain-validator/pkg/errors"
)

// CycleError reports a parent-pointer cycle discovered during an ancestor
// walk.
type CycleError struct {
	Start string
	At    string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("taxonomy cycle at taxid %s while walking ancestors of %s", e.At, e.Start)
}

func (e *CycleError) Unwrap() error { return apperr.ErrCycleDetected }

// IntegrityError reports a parent reference to a taxid that is not in the
// parent map.
type IntegrityError struct {
	Start   string
	Missing string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("taxid %s not in taxonomy while walking ancestors of %s", e.Missing, e.Start)
}

func (e *IntegrityError) Unwrap() error { return apperr.ErrMissingParent }

// IsVirus walks the parent chain from taxid. It returns true on reaching
// the Viruses node and false on reaching the root without passing it. An
// empty taxid is false with no walk.
func IsVirus(taxid string, g *taxonomy.Graph) (bool, error) {
	if taxid == "" {
		return false, nil
	}

	visited := make(map[string]struct{})
	current := taxid
	for {
		switch current {
		case taxonomy.VirusRoot:
			return true, nil
		case taxonomy.Root:
			return false, nil
		}
		if _, seen := visited[current]; seen {
			return false, &CycleError{Start: taxid, At: current}
		}
		visited[current] = struct{}{}

		parent, ok := g.ParentOf(current)
		if !ok {
			return false, &IntegrityError{Start: taxid, Missing: current}
		}
		current = parent
	}
}
