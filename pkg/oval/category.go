// Package oval defines the closed set of OVAL element categories and the
// reference names that point from one element to another.
//
// OVAL documents store each category in its own top-level section
// (definitions, tests, objects, states, variables). Elements refer to each
// other either through an attribute such as test_ref="oval:x:tst:1" or
// through a child element such as <var_ref>oval:x:var:1</var_ref>. The
// [Category] enumeration and [MatchRef] table are the only place where those
// names are interpreted.
package oval

import "fmt"

// Category identifies the kind of an OVAL element and the section that
// stores it.
type Category int

const (
	// Definition is a top-level vulnerability or inventory record.
	Definition Category = iota
	// Test links an object to the states it is compared against.
	Test
	// Object describes what to collect on the target system.
	Object
	// State describes the expected value of a collected object.
	State
	// Variable provides values referenced by objects and states.
	Variable
)

// Categories lists every category in output section order.
var Categories = []Category{Definition, Test, Object, State, Variable}

// SupportCategories lists the categories that only ever enter the output
// because a surviving definition reaches them.
var SupportCategories = []Category{Test, Object, State, Variable}

var categoryNames = [...]string{
	Definition: "definition",
	Test:       "test",
	Object:     "object",
	State:      "state",
	Variable:   "variable",
}

var sectionNames = [...]string{
	Definition: "definitions",
	Test:       "tests",
	Object:     "objects",
	State:      "states",
	Variable:   "variables",
}

// String returns the singular category name (e.g. "test").
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Section returns the local name of the top-level element holding this
// category (e.g. "tests").
func (c Category) Section() string {
	if !c.Valid() {
		return ""
	}
	return sectionNames[c]
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= Definition && c <= Variable
}

// ParseCategory returns the category with the given singular name.
func ParseCategory(name string) (Category, bool) {
	for c, n := range categoryNames {
		if n == name {
			return Category(c), true
		}
	}
	return 0, false
}

// refNames maps attribute and element local names to the category they
// point at. OVAL spells variable references "var_ref"; "variable_ref" is
// accepted for feeds that use the long form.
var refNames = map[string]Category{
	"definition_ref": Definition,
	"test_ref":       Test,
	"object_ref":     Object,
	"state_ref":      State,
	"var_ref":        Variable,
	"variable_ref":   Variable,
}

// MatchRef reports whether name (an attribute name or an element local
// name, without namespace prefix) denotes a reference, and to which category.
func MatchRef(name string) (Category, bool) {
	c, ok := refNames[name]
	return c, ok
}

// Ref is a typed reference edge: the category and id of the element pointed at.
type Ref struct {
	Category Category
	ID       string
}

// String returns "category:id".
func (r Ref) String() string {
	return r.Category.String() + ":" + r.ID
}
