package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/booker/pkg/actions"
	"github.com/entrhq/booker/pkg/types"
	"github.com/entrhq/booker/pkg/wizard"
)

func TestCatalogSelector(t *testing.T) {
	c := Catalog{
		"plain":   "button.next",
		"gender":  `label[data-value="%s"]`,
		"country": `li[title="%s"], option[value="%s"]`,
	}

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr bool
	}{
		{"plain", "plain", "button.next", false},
		{"argument", "gender:F", `label[data-value="F"]`, false},
		{"argument used twice", "country:Poland", `li[title="Poland"], option[value="Poland"]`, false},
		{"quotes escaped", `gender:a"b`, `label[data-value="a\"b"]`, false},
		{"unknown", "missing", "", true},
		{"argument not taken", "plain:x", "", true},
		{"argument missing", "gender", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Selector(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultCatalogCoversWizard(t *testing.T) {
	c := DefaultCatalog()
	in := wizard.StepInput{}
	in.Profile.Gender = "M"
	in.Profile.Client.Surname = "Doe"

	machine, err := wizard.NewMachine(wizard.DefaultSteps(), wizard.DefaultRetryPolicy(), 0.8)
	require.NoError(t, err)
	for _, step := range types.WizardSteps {
		for _, ref := range machine.References(step, in) {
			_, err := c.Selector(ref)
			assert.NoError(t, err, "step %s reference %s", step, ref)
		}
	}
	for _, ref := range []string{wizard.RefNextPage, wizard.RefSuccess} {
		_, err := c.Selector(ref)
		assert.NoError(t, err, ref)
	}
}

func TestCatalogMerge(t *testing.T) {
	base := Catalog{"a": "x", "b": "y"}
	merged := base.Merge(map[string]string{"b": "z", "c": "w"})

	assert.Equal(t, Catalog{"a": "x", "b": "z", "c": "w"}, merged)
	assert.Equal(t, "y", base["b"])
}

const calendarPage = `<html><body>
<div class="calendar">
  <button class="prev disabled">&lt;</button>
  <table>
    <tr>
      <td data-date="2025-07-01" class="day disabled">1</td>
      <td data-date="2025-07-02" class="day available">2</td>
      <td data-date="2025-07-03" class="day">3</td>
      <td data-date="2025-07-04" class="day available" aria-disabled="true">4</td>
      <td class="day empty"></td>
    </tr>
  </table>
  <button class="next">&gt;</button>
</div>
</body></html>`

func TestParseCalendar(t *testing.T) {
	view, err := ParseCalendar(calendarPage, DefaultCalendarMarkup())
	require.NoError(t, err)

	require.Len(t, view.Cells, 4)
	assert.True(t, view.HasNextPage)

	byDay := map[int]types.CalendarCell{}
	for _, c := range view.Cells {
		byDay[c.Date.Day] = c
	}
	assert.False(t, byDay[1].Enabled)
	assert.True(t, byDay[2].Selectable())
	assert.False(t, byDay[3].Available)
	assert.False(t, byDay[4].Selectable())
	assert.Equal(t, types.NewDate(2025, time.July, 2), byDay[2].Date)
	assert.Equal(t, `.calendar [data-date][data-date="2025-07-02"]`, byDay[2].Selector)
}

func TestParseCalendarLastPage(t *testing.T) {
	page := `<div class="calendar"><span data-date="2025-08-01" class="available"></span>
<button class="next" disabled></button></div>`

	view, err := ParseCalendar(page, DefaultCalendarMarkup())
	require.NoError(t, err)
	assert.False(t, view.HasNextPage)
	require.Len(t, view.Cells, 1)
	assert.True(t, view.Cells[0].Selectable())
}

func TestParseCalendarCustomMarkup(t *testing.T) {
	m := CalendarMarkup{
		Cell:           "#grid .cell",
		DateAttr:       "data-day",
		DateLayout:     "02.01.2006",
		AvailableClass: "free",
		DisabledClass:  "off",
		Next:           "#grid .fwd",
	}
	page := `<div id="grid"><a class="cell free" data-day="15.09.2025"></a><a class="cell free off" data-day="16.09.2025"></a></div>`

	view, err := ParseCalendar(page, m)
	require.NoError(t, err)
	assert.False(t, view.HasNextPage)
	require.Len(t, view.Cells, 2)
	assert.Equal(t, types.NewDate(2025, time.September, 15), view.Cells[0].Date)
	assert.True(t, view.Cells[0].Selectable())
	assert.False(t, view.Cells[1].Selectable())
}

func TestParseCalendarInvalidDate(t *testing.T) {
	_, err := ParseCalendar(`<div class="calendar"><b data-date="tomorrow"></b></div>`, DefaultCalendarMarkup())
	assert.Error(t, err)
}

func TestProfileName(t *testing.T) {
	assert.Equal(t, "alice", profileName("alice"))
	assert.Equal(t, "ivan_petrenko", profileName("ivan petrenko"))
	assert.Equal(t, ".._etc_passwd", profileName("../etc/passwd"))
	assert.Equal(t, "_", profileName(".."))
}

func TestPrepareProfile(t *testing.T) {
	root := t.TempDir()
	template := filepath.Join(root, "template")
	require.NoError(t, os.MkdirAll(filepath.Join(template, "Default"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(template, "Default", "Preferences"), []byte("{}"), 0600))

	t.Run("temporary profile seeded from template", func(t *testing.T) {
		m := NewManager(Options{ProfilesDir: filepath.Join(root, "profiles"), TemplateDir: template}, nil, CalendarMarkup{}, 0.8, actions.DefaultOptions())

		dir, temporary, err := m.prepareProfile("alice")
		require.NoError(t, err)
		assert.True(t, temporary)
		assert.Equal(t, filepath.Join(root, "profiles"), filepath.Dir(dir))

		data, err := os.ReadFile(filepath.Join(dir, "Default", "Preferences"))
		require.NoError(t, err)
		assert.Equal(t, "{}", string(data))

		other, _, err := m.prepareProfile("alice")
		require.NoError(t, err)
		assert.NotEqual(t, dir, other)
	})

	t.Run("kept profile is stable", func(t *testing.T) {
		m := NewManager(Options{ProfilesDir: filepath.Join(root, "kept"), KeepProfiles: true, TemplateDir: template}, nil, CalendarMarkup{}, 0.8, actions.DefaultOptions())

		dir, temporary, err := m.prepareProfile("bob smith")
		require.NoError(t, err)
		assert.False(t, temporary)
		assert.Equal(t, filepath.Join(root, "kept", "bob_smith"), dir)

		again, _, err := m.prepareProfile("bob smith")
		require.NoError(t, err)
		assert.Equal(t, dir, again)
		assert.NoFileExists(t, filepath.Join(dir, "Default", "Preferences"))
	})
}

func TestOpenRequiresInitialize(t *testing.T) {
	m := NewManager(Options{ProfilesDir: t.TempDir()}, nil, CalendarMarkup{}, 0.8, actions.DefaultOptions())
	_, err := m.Open(context.Background(), "alice")
	assert.ErrorContains(t, err, "not initialized")
}
