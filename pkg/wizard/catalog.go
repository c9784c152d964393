package wizard

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/entrhq/booker/pkg/actions"
	"github.com/entrhq/booker/pkg/perception"
	"github.com/entrhq/booker/pkg/types"
)

// Visual references of the default booking flow. The browser adapter maps
// each name to a selector; parameterised references carry an argument after
// a colon (see perception.Ref).
const (
	RefLoginEntry    = "login.entry"
	RefLoginKeyFile  = "login.key_file"
	RefLoginPassword = "login.password"
	RefLoginSubmit   = "login.submit"
	RefWelcome       = "login.welcome"

	RefVisitMenu   = "nav.visit"
	RefVisitBook   = "nav.book"
	RefBirthDay    = "personal.birth_day"
	RefBirthMonth  = "personal.birth_month"
	RefBirthYear   = "personal.birth_year"
	RefGender      = "personal.gender"
	RefNext        = "wizard.next"
	RefBack        = "wizard.back"
	RefService     = "service.field"
	RefPersonName  = "service.person_name"
	RefCountry     = "consulate.country"
	RefConsulate   = "consulate.field"
	RefCalendar    = "calendar.grid"
	RefCalendarDay = "calendar.day_mode"
	RefNextPage    = "calendar.next_page"
	RefSubmit      = "confirm.submit"
	RefSuccess     = "confirm.success"
)

// DefaultSteps returns the step catalog of the consular booking wizard.
func DefaultSteps() []StepSpec {
	return []StepSpec{
		{
			Step:     types.StepLogin,
			Requires: []string{RefLoginKeyFile, RefLoginPassword, RefLoginSubmit},
			SkipIf:   []string{RefWelcome},
			Entry:    []string{RefLoginEntry},
			Plan:     planLogin,
			Next:     types.StepPersonalInfo,
		},
		{
			Step:     types.StepPersonalInfo,
			Requires: []string{RefBirthDay, RefBirthMonth, RefBirthYear, RefNext},
			Targets: func(in StepInput) []string {
				return []string{perception.Ref(RefGender, in.Profile.Gender)}
			},
			Entry: []string{RefVisitBook, RefVisitMenu},
			Plan:  planPersonalInfo,
			Next:  types.StepServiceSelect,
		},
		{
			Step:     types.StepServiceSelect,
			Requires: []string{RefService, RefNext},
			Targets: func(in StepInput) []string {
				if in.Profile.ForAnotherPerson() {
					return []string{RefPersonName}
				}
				return nil
			},
			Plan: planServiceSelect,
			Next: types.StepConsulateSelect,
		},
		{
			Step:     types.StepConsulateSelect,
			Requires: []string{RefCountry, RefConsulate, RefNext},
			Entry:    []string{RefBack},
			Plan:     planConsulateSelect,
			Next:     types.StepCalendarSearch,
		},
		{
			Step:     types.StepCalendarSearch,
			Requires: []string{RefCalendar},
			Entry:    []string{RefCalendarDay},
			Plan:     planPickCell,
			Next:     types.StepConfirmation,
		},
		{
			Step:     types.StepConfirmation,
			Requires: []string{RefSubmit},
			Plan: func(ctx context.Context, in StepInput) (actions.Sequence, error) {
				return actions.Sequence{actions.Click(RefSubmit)}, nil
			},
			Next: types.StepDone,
		},
	}
}

// NextPagePlan advances the calendar by one page.
func NextPagePlan() actions.Sequence {
	return actions.Sequence{actions.Click(RefNextPage)}
}

func planLogin(ctx context.Context, in StepInput) (actions.Sequence, error) {
	if in.Credentials == nil {
		return nil, &types.StepFailure{
			Kind:    types.FailureCredentialUnavailable,
			Step:    types.StepLogin,
			Message: "no credential source configured",
		}
	}
	password, err := in.Credentials.Password(ctx, in.Profile.Credential)
	if err != nil {
		return nil, &types.StepFailure{
			Kind:    types.FailureCredentialUnavailable,
			Step:    types.StepLogin,
			Message: fmt.Sprintf("cannot resolve %s", in.Profile.Credential),
			Err:     err,
		}
	}

	// The password slice is owned by the sequence and wiped after typing.
	return actions.Sequence{
		actions.Upload(RefLoginKeyFile, in.Profile.Credential.KeyPath),
		actions.Click(RefLoginPassword),
		actions.TypeSecret(password),
		actions.Click(RefLoginSubmit),
	}, nil
}

func planPersonalInfo(ctx context.Context, in StepInput) (actions.Sequence, error) {
	b := in.Profile.Birthdate
	return actions.Sequence{
		actions.Click(RefBirthDay),
		actions.Type(fmt.Sprintf("%02d", b.Day)),
		actions.Click(RefBirthMonth),
		actions.Type(fmt.Sprintf("%02d", int(b.Month))),
		actions.Click(RefBirthYear),
		actions.Type(strconv.Itoa(b.Year)),
		actions.Click(perception.Ref(RefGender, in.Profile.Gender)),
		actions.Click(RefNext),
	}, nil
}

func planServiceSelect(ctx context.Context, in StepInput) (actions.Sequence, error) {
	seq := actions.Sequence{
		actions.Click(RefService),
		actions.Type(in.Profile.Service),
		actions.Press("Enter"),
	}
	if in.Profile.ForAnotherPerson() {
		c := in.Profile.Client
		name := strings.Join(nonEmpty(c.Surname, c.Name, c.Patronymic), " ")
		seq = append(seq, actions.Click(RefPersonName), actions.Type(name))
	}
	return append(seq, actions.Click(RefNext)), nil
}

func planConsulateSelect(ctx context.Context, in StepInput) (actions.Sequence, error) {
	if in.Consulate == "" {
		return nil, &types.StepFailure{
			Kind:    types.FailureConstraintUnsatisfiable,
			Step:    types.StepConsulateSelect,
			Message: "no consulate selected",
		}
	}
	return actions.Sequence{
		actions.Click(RefCountry),
		actions.Type(in.Profile.Country),
		actions.Press("Enter"),
		actions.Click(RefConsulate),
		actions.Type(in.Consulate),
		actions.Press("Enter"),
		actions.Click(RefNext),
	}, nil
}

func planPickCell(ctx context.Context, in StepInput) (actions.Sequence, error) {
	if in.Cell.Date.IsZero() {
		return nil, &types.StepFailure{
			Kind:    types.FailureActionFailed,
			Step:    types.StepCalendarSearch,
			Message: "no calendar cell picked",
		}
	}
	return actions.Sequence{actions.ClickAt(in.Cell.Location)}, nil
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
