package types

// WizardStep identifies one page of the multi-step booking form.
type WizardStep string

const (
	StepLogin           WizardStep = "login"            // StepLogin authenticates with the user's key.
	StepPersonalInfo    WizardStep = "personal_info"    // StepPersonalInfo fills birthdate and gender.
	StepServiceSelect   WizardStep = "service_select"   // StepServiceSelect picks the consular service and applicant.
	StepConsulateSelect WizardStep = "consulate_select" // StepConsulateSelect picks country and consulate.
	StepCalendarSearch  WizardStep = "calendar_search"  // StepCalendarSearch scans the calendar for a free slot.
	StepConfirmation    WizardStep = "confirmation"     // StepConfirmation submits and verifies the reservation.
	StepDone            WizardStep = "done"             // StepDone is the terminal success state.
	StepError           WizardStep = "error"            // StepError is the terminal failure state.
)

// WizardSteps lists the non-terminal steps in traversal order.
var WizardSteps = []WizardStep{
	StepLogin,
	StepPersonalInfo,
	StepServiceSelect,
	StepConsulateSelect,
	StepCalendarSearch,
	StepConfirmation,
}

// IsTerminal reports whether no transition leaves s.
func (s WizardStep) IsTerminal() bool {
	return s == StepDone || s == StepError
}

// Valid reports whether s is a known step.
func (s WizardStep) Valid() bool {
	if s.IsTerminal() {
		return true
	}
	for _, step := range WizardSteps {
		if step == s {
			return true
		}
	}
	return false
}
