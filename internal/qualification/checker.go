package qualification

// Profile is the scheduling-relevant slice of an employee record. A nil
// profile means the employee was never restricted and may perform anything.
type Profile struct {
	EmployeeID   string
	Active       bool
	TreatmentIDs []string
}

type Result struct {
	Qualified bool
	Reason    string
}

// Check decides whether the employee may perform the treatment. An empty
// qualified-treatment list leaves the employee unrestricted.
func Check(profile *Profile, treatmentID string) Result {
	if profile == nil {
		return Result{Qualified: true}
	}
	if !profile.Active {
		return Result{Reason: "Employee is inactive"}
	}
	if len(profile.TreatmentIDs) == 0 {
		return Result{Qualified: true}
	}
	for _, id := range profile.TreatmentIDs {
		if id == treatmentID {
			return Result{Qualified: true}
		}
	}
	return Result{Reason: "Employee is not qualified for this treatment"}
}
