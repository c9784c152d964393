// Package profile loads per-user booking profiles from a directory of YAML
// files and publishes them as immutable snapshots.
package profile

import (
	"path/filepath"
	"reflect"
	"time"

	"github.com/entrhq/booker/pkg/slots"
	"github.com/entrhq/booker/pkg/types"
)

// ClientName is the applicant name. When Surname is set the appointment is
// booked for another person rather than for the key holder.
type ClientName struct {
	Surname    string `yaml:"surname" json:"surname,omitempty"`
	Name       string `yaml:"name" json:"name,omitempty"`
	Patronymic string `yaml:"patronymic" json:"patronymic,omitempty"`
}

// CredentialRef is an opaque handle to the user's login credential. It holds
// the key file location and the sealed key password, never the plaintext.
type CredentialRef struct {
	KeyPath        string
	Issuer         string
	SealedPassword string
}

// String never reveals the sealed password.
func (c CredentialRef) String() string {
	return "key:" + filepath.Base(c.KeyPath)
}

// UserProfile is one user's booking request.
type UserProfile struct {
	Alias      string
	Client     ClientName
	Birthdate  types.Date
	Gender     string
	Country    string
	Credential CredentialRef
	Service    string

	// Consulates is non-empty and ordered by preference.
	Consulates []string

	// MinDate and DaysFromNow are mutually exclusive floors for the
	// earliest acceptable date. DaysFromNow is nil when unset.
	MinDate     types.Date
	DaysFromNow *int

	Weekdays []time.Weekday
	Months   []time.Month

	// SourceFile is the YAML file the profile was read from.
	SourceFile string
}

// ForAnotherPerson reports whether the applicant differs from the key holder.
func (p UserProfile) ForAnotherPerson() bool {
	return p.Client.Surname != ""
}

// EarliestAcceptable evaluates the earliest acceptable date on today. The
// result is never before today.
func (p UserProfile) EarliestAcceptable(today types.Date) types.Date {
	switch {
	case !p.MinDate.IsZero():
		return types.MaxDate(p.MinDate, today)
	case p.DaysFromNow != nil:
		return today.AddDays(*p.DaysFromNow)
	default:
		return today
	}
}

// Constraints derives the slot search constraints on today.
func (p UserProfile) Constraints(today types.Date) slots.Constraints {
	return slots.Constraints{
		Earliest: p.EarliestAcceptable(today),
		Weekdays: append([]time.Weekday(nil), p.Weekdays...),
		Months:   append([]time.Month(nil), p.Months...),
	}
}

// SlotKey returns the registry key for one of the profile's consulates.
func (p UserProfile) SlotKey(consulate string) slots.Key {
	return slots.Key{Country: p.Country, Consulate: consulate, Service: p.Service}
}

// Equal reports whether two profiles carry the same request.
func (p UserProfile) Equal(o UserProfile) bool {
	return reflect.DeepEqual(p, o)
}
