package merge

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/matzehuels/ovalmerge/pkg/errors"
	"github.com/matzehuels/ovalmerge/pkg/xmldoc"
)

// Validate checks that no two elements under root carry the same id. Every
// repeated id is named in the returned [errors.ErrCodeOutputDuplicateID]
// error.
func Validate(root *etree.Element) error {
	if root == nil {
		return errors.New(errors.ErrCodeInternal, "validate: empty output")
	}

	seen := make(map[string]int)
	var dups []string
	xmldoc.Walk(root, func(el *etree.Element) {
		id, ok := xmldoc.ID(el)
		if !ok {
			return
		}
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	})

	switch len(dups) {
	case 0:
		return nil
	case 1:
		return errors.New(errors.ErrCodeOutputDuplicateID,
			"id %q appears on %d elements", dups[0], seen[dups[0]])
	default:
		return errors.New(errors.ErrCodeOutputDuplicateID,
			"%d ids appear on more than one element: %s", len(dups), strings.Join(dups, ", "))
	}
}
