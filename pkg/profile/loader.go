package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/booker/pkg/logging"
	"github.com/entrhq/booker/pkg/types"
)

var loaderLog = logging.NewLogger("profile")

// rawProfile is the YAML schema of one user file.
type rawProfile struct {
	Alias       string      `yaml:"alias"`
	KeyPath     string      `yaml:"key_path"`
	KeyIssuer   string      `yaml:"key_issuer"`
	KeyPassword string      `yaml:"key_password"`
	Birthdate   string      `yaml:"birthdate"`
	Gender      string      `yaml:"gender"`
	Country     string      `yaml:"country"`
	Consulates  []string    `yaml:"consulates"`
	Service     string      `yaml:"service"`
	ClientName  *ClientName `yaml:"client_name"`
	MinDate     string      `yaml:"min_date"`
	DaysFromNow *int        `yaml:"days_from_now"`
	Weekdays    []string    `yaml:"weekdays"`
	Months      []string    `yaml:"months"`
}

// Loader reads profile files from a directory.
type Loader struct {
	dir     string
	keysDir string
	matcher *PatternMatcher
}

// NewLoader creates a loader for dir. Relative key paths are resolved against
// keysDir, or against dir when keysDir is empty.
func NewLoader(dir, keysDir string, matcher *PatternMatcher) (*Loader, error) {
	if dir == "" {
		return nil, errors.New("profile directory is required")
	}
	if matcher == nil {
		m, err := NewPatternMatcher(nil, nil)
		if err != nil {
			return nil, err
		}
		matcher = m
	}
	if keysDir == "" {
		keysDir = dir
	}
	return &Loader{dir: dir, keysDir: keysDir, matcher: matcher}, nil
}

// Dir returns the watched profile directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Matches reports whether path names a profile file.
func (l *Loader) Matches(path string) bool {
	return l.matcher.Matches(path)
}

// Load reads every matching file. A file that fails to parse or validate is
// reported in the returned error list and skipped; it never prevents the
// remaining files from loading. Files are read in name order, and on a
// duplicate alias the first file wins.
func (l *Loader) Load() (*Snapshot, []error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return NewSnapshot(nil), []error{fmt.Errorf("failed to read profile directory %s: %w", l.dir, err)}
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !l.matcher.Matches(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var (
		profiles []UserProfile
		errs     []error
		seen     = make(map[string]string)
	)
	for _, name := range names {
		path := filepath.Join(l.dir, name)
		p, err := l.LoadFile(path)
		if err != nil {
			loaderLog.Warnf("Skip invalid profile %s: %v", name, err)
			errs = append(errs, err)
			continue
		}
		if first, dup := seen[p.Alias]; dup {
			err := invalid(path, "alias", "duplicate alias %q (already defined in %s)", p.Alias, filepath.Base(first))
			loaderLog.Warnf("Skip profile: %v", err)
			errs = append(errs, err)
			continue
		}
		seen[p.Alias] = path
		profiles = append(profiles, p)
	}

	return NewSnapshot(profiles), errs
}

// LoadFile reads and validates one profile file.
func (l *Loader) LoadFile(path string) (UserProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return UserProfile{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw rawProfile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return UserProfile{}, invalid(path, "", "malformed YAML: %v", err)
	}
	return l.build(path, raw)
}

func (l *Loader) build(path string, raw rawProfile) (UserProfile, error) {
	var missing []string
	for field, value := range map[string]string{
		"key_path":     raw.KeyPath,
		"key_password": raw.KeyPassword,
		"birthdate":    raw.Birthdate,
		"gender":       raw.Gender,
		"country":      raw.Country,
		"service":      raw.Service,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(raw.Consulates) == 0 {
		missing = append(missing, "consulates")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return UserProfile{}, invalid(path, "", "missing required fields: %s", strings.Join(missing, ", "))
	}

	p := UserProfile{
		Alias:      strings.TrimSpace(raw.Alias),
		Gender:     strings.TrimSpace(raw.Gender),
		Country:    strings.TrimSpace(raw.Country),
		Service:    strings.TrimSpace(raw.Service),
		SourceFile: path,
	}
	if p.Alias == "" {
		p.Alias = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if raw.ClientName != nil {
		p.Client = ClientName{
			Surname:    strings.TrimSpace(raw.ClientName.Surname),
			Name:       strings.TrimSpace(raw.ClientName.Name),
			Patronymic: strings.TrimSpace(raw.ClientName.Patronymic),
		}
	}

	keyPath := raw.KeyPath
	if !filepath.IsAbs(keyPath) {
		keyPath = filepath.Join(l.keysDir, keyPath)
	}
	if _, err := os.Stat(keyPath); err != nil {
		return UserProfile{}, invalid(path, "key_path", "key file not found: %s", keyPath)
	}
	if !IsSealed(raw.KeyPassword) {
		return UserProfile{}, invalid(path, "key_password", "must be sealed with 'booker seal'")
	}
	p.Credential = CredentialRef{
		KeyPath:        keyPath,
		Issuer:         strings.TrimSpace(raw.KeyIssuer),
		SealedPassword: raw.KeyPassword,
	}

	birthdate, err := types.ParseDate(strings.TrimSpace(raw.Birthdate))
	if err != nil {
		return UserProfile{}, invalid(path, "birthdate", "must be ISO yyyy-mm-dd")
	}
	p.Birthdate = birthdate

	for _, c := range raw.Consulates {
		c = strings.TrimSpace(c)
		if c == "" {
			return UserProfile{}, invalid(path, "consulates", "entries must be non-empty")
		}
		p.Consulates = append(p.Consulates, c)
	}

	if raw.MinDate != "" && raw.DaysFromNow != nil {
		return UserProfile{}, invalid(path, "min_date", "min_date and days_from_now are mutually exclusive")
	}
	if raw.MinDate != "" {
		d, err := types.ParseDate(strings.TrimSpace(raw.MinDate))
		if err != nil {
			return UserProfile{}, invalid(path, "min_date", "must be ISO yyyy-mm-dd")
		}
		p.MinDate = d
	}
	if raw.DaysFromNow != nil {
		if *raw.DaysFromNow < 0 {
			return UserProfile{}, invalid(path, "days_from_now", "must be a non-negative integer")
		}
		days := *raw.DaysFromNow
		p.DaysFromNow = &days
	}

	for _, s := range raw.Weekdays {
		wd, err := parseWeekday(s)
		if err != nil {
			return UserProfile{}, invalid(path, "weekdays", "%v", err)
		}
		p.Weekdays = append(p.Weekdays, wd)
	}
	for _, s := range raw.Months {
		m, err := parseMonth(s)
		if err != nil {
			return UserProfile{}, invalid(path, "months", "%v", err)
		}
		p.Months = append(p.Months, m)
	}

	return p, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func parseMonth(s string) (time.Month, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month %d out of range", n)
		}
		return time.Month(n), nil
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if s == name || s == name[:3] {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown month %q", s)
}
