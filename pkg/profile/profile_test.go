package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/booker/pkg/types"
)

// testVault uses cheap scrypt parameters.
func testVault(passphrase string) *Vault {
	v := NewVault(passphrase)
	v.n, v.r, v.p = 1<<10, 8, 1
	return v
}

type fixture struct {
	dir     string
	keysDir string
	sealed  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{dir: filepath.Join(root, "users"), keysDir: filepath.Join(root, "keys")}
	require.NoError(t, os.MkdirAll(f.dir, 0750))
	require.NoError(t, os.MkdirAll(f.keysDir, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(f.keysDir, "alice.jks"), []byte("key"), 0600))

	sealed, err := testVault("secret").Seal([]byte("hunter2"))
	require.NoError(t, err)
	f.sealed = sealed
	return f
}

func (f *fixture) write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func (f *fixture) valid(extra string) string {
	return `key_path: alice.jks
key_password: "` + f.sealed + `"
birthdate: 1990-04-12
gender: female
country: Poland
consulates: [Warsaw, Krakow]
service: passport
` + extra
}

func TestLoader_LoadFile(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, "alice.yaml", f.valid(`client_name:
  surname: Kowalska
  name: Anna
weekdays: [mon, Friday]
months: [7, august]
days_from_now: 3
`))

	loader, err := NewLoader(f.dir, f.keysDir, nil)
	require.NoError(t, err)

	p, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", p.Alias, "alias defaults to the file stem")
	assert.Equal(t, filepath.Join(f.keysDir, "alice.jks"), p.Credential.KeyPath)
	assert.Equal(t, types.NewDate(1990, time.April, 12), p.Birthdate)
	assert.Equal(t, []string{"Warsaw", "Krakow"}, p.Consulates)
	assert.True(t, p.ForAnotherPerson())
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, p.Weekdays)
	assert.Equal(t, []time.Month{time.July, time.August}, p.Months)
	require.NotNil(t, p.DaysFromNow)
	assert.Equal(t, 3, *p.DaysFromNow)
	assert.NotContains(t, p.Credential.String(), "sealed")
}

func TestLoader_Validation(t *testing.T) {
	f := newFixture(t)
	loader, err := NewLoader(f.dir, f.keysDir, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing fields", "gender: male\n", ""},
		{"bad birthdate", `key_path: alice.jks
key_password: "` + f.sealed + `"
birthdate: 12.04.1990
gender: female
country: Poland
consulates: [Warsaw]
service: passport
`, "birthdate"},
		{"missing key file", `key_path: nobody.jks
key_password: "` + f.sealed + `"
birthdate: 1990-04-12
gender: female
country: Poland
consulates: [Warsaw]
service: passport
`, "key_path"},
		{"plain password", `key_path: alice.jks
key_password: hunter2
birthdate: 1990-04-12
gender: female
country: Poland
consulates: [Warsaw]
service: passport
`, "key_password"},
		{"negative days", f.valid("days_from_now: -1\n"), "days_from_now"},
		{"both floors", f.valid("days_from_now: 1\nmin_date: 2025-07-01\n"), "min_date"},
		{"bad weekday", f.valid("weekdays: [someday]\n"), "weekdays"},
		{"bad month", f.valid("months: [13]\n"), "months"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := f.write(t, "case.yaml", tt.body)
			_, err := loader.LoadFile(path)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoader_PartialSuccess(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.yaml", f.valid(""))
	f.write(t, "b.yaml", "key_path: [unterminated\n")
	f.write(t, "c.yml", f.valid("alias: carol\n"))
	f.write(t, "d.yaml", f.valid("alias: carol\n"))
	f.write(t, "notes.txt", "not a profile")
	f.write(t, ".hidden.yaml", f.valid(""))

	loader, err := NewLoader(f.dir, f.keysDir, nil)
	require.NoError(t, err)

	snap, errs := loader.Load()
	assert.Equal(t, []string{"a", "carol"}, snap.Aliases())
	assert.Len(t, errs, 2, "malformed file and duplicate alias are reported")

	p, ok := snap.Get("carol")
	require.True(t, ok)
	assert.Equal(t, "c.yml", filepath.Base(p.SourceFile), "first file wins on duplicate alias")
}

func TestLoader_MissingDirectory(t *testing.T) {
	loader, err := NewLoader(filepath.Join(t.TempDir(), "nope"), "", nil)
	require.NoError(t, err)

	snap, errs := loader.Load()
	assert.Equal(t, 0, snap.Len())
	assert.Len(t, errs, 1)
}

func TestEarliestAcceptable(t *testing.T) {
	today := types.NewDate(2025, time.July, 1)
	three := 3

	tests := []struct {
		name    string
		profile UserProfile
		want    types.Date
	}{
		{"absent means today", UserProfile{}, today},
		{"relative days", UserProfile{DaysFromNow: &three}, types.NewDate(2025, time.July, 4)},
		{"future min date", UserProfile{MinDate: types.NewDate(2025, time.August, 1)}, types.NewDate(2025, time.August, 1)},
		{"past min date clamps to today", UserProfile{MinDate: types.NewDate(2025, time.January, 1)}, today},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.profile.EarliestAcceptable(today)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.Before(today))
		})
	}
}

func TestPatternMatcher(t *testing.T) {
	pm, err := NewPatternMatcher(nil, []string{"draft-*"})
	require.NoError(t, err)

	assert.True(t, pm.Matches("/users/alice.yaml"))
	assert.True(t, pm.Matches("bob.yml"))
	assert.False(t, pm.Matches("bob.json"))
	assert.False(t, pm.Matches(".#alice.yaml"))
	assert.False(t, pm.Matches("alice.yaml~"))
	assert.False(t, pm.Matches("draft-alice.yaml"))

	_, err = NewPatternMatcher([]string{"[unclosed"}, nil)
	assert.Error(t, err)
}

func TestStore_ReplaceAndDiff(t *testing.T) {
	alice := UserProfile{Alias: "alice", Consulates: []string{"Warsaw"}}
	bob := UserProfile{Alias: "bob", Consulates: []string{"Lviv"}}

	store := NewStore(NewSnapshot([]UserProfile{alice, bob}))
	first := store.Snapshot()
	assert.Equal(t, uint64(1), first.Version())

	changed := store.Changed()
	alice2 := alice
	alice2.Consulates = []string{"Krakow"}
	carol := UserProfile{Alias: "carol", Consulates: []string{"Kyiv"}}
	second := store.Replace(NewSnapshot([]UserProfile{alice2, carol}))

	select {
	case <-changed:
	default:
		t.Fatal("Changed was not signalled")
	}
	assert.Equal(t, uint64(2), second.Version())
	assert.Equal(t, second, store.Snapshot())

	// The old snapshot is untouched.
	p, _ := first.Get("alice")
	assert.Equal(t, []string{"Warsaw"}, p.Consulates)

	diff := second.Compare(first)
	assert.Equal(t, []string{"carol"}, diff.Added)
	assert.Equal(t, []string{"bob"}, diff.Removed)
	assert.Equal(t, []string{"alice"}, diff.Changed)
	assert.True(t, second.Compare(second).Empty())
}

func TestVault_SealOpen(t *testing.T) {
	v := testVault("secret")

	sealed, err := v.Seal([]byte("hunter2"))
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "hunter2")

	pt, err := v.Password(context.Background(), CredentialRef{SealedPassword: sealed})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(pt))

	Wipe(pt)
	assert.Equal(t, make([]byte, len(pt)), pt)

	_, err = testVault("wrong").Open(sealed)
	assert.ErrorIs(t, err, ErrWrongPassphrase)

	_, err = NewVault("").Open(sealed)
	assert.ErrorIs(t, err, ErrNoPassphrase)

	_, err = v.Open("plain")
	assert.Error(t, err)
}
