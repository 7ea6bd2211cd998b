package tariffs

// MinStayCheck is the outcome of comparing a stay length with the applicable minimums.
type MinStayCheck struct {
	Violated bool
	Required int
}

// CheckMinStay requires the larger of the period and rule minimums. Without a
// known night count (no check-out date) the stay is never reported as violating.
func CheckMinStay(nights *int, periodMin, ruleMin int) MinStayCheck {
	required := max(periodMin, ruleMin, 1)
	return MinStayCheck{
		Violated: nights != nil && *nights < required,
		Required: required,
	}
}

// Merge keeps the strictest requirement of two checks.
func (c MinStayCheck) Merge(other MinStayCheck) MinStayCheck {
	return MinStayCheck{
		Violated: c.Violated || other.Violated,
		Required: max(c.Required, other.Required),
	}
}
