package classify

// Plan summarizes a classification result for display.
type Plan struct {
	Root      string
	Units     []WorkUnit
	Singles   int
	MultiDisc int
}

// NewPlan counts units by kind.
func NewPlan(root string, units []WorkUnit) Plan {
	p := Plan{Root: root, Units: units}
	for _, u := range units {
		switch u.Kind {
		case KindMultiDisc:
			p.MultiDisc++
		default:
			p.Singles++
		}
	}
	return p
}

// Total returns the number of units in the plan.
func (p Plan) Total() int { return len(p.Units) }
