// Package browser drives the booking site through Playwright.
//
// It supplies the GUI side of a user session: a Locator that resolves
// visual references to on-page elements, a Device that synthesises mouse
// and keyboard input, and a calendar reader that turns the rendered day
// grid into a CalendarView.
//
// # Architecture
//
// The package is built around two types:
//
// 1. Manager: owns the Playwright driver and hands out one session at a time
// 2. Session: a persistent browser context bound to one user profile directory
//
// # Profile Lifecycle
//
// Every user gets a browser profile directory under Options.ProfilesDir,
// named after the user alias:
//
//  1. Open: with KeepProfiles the directory is reused across runs so login
//     cookies survive; otherwise it is seeded from TemplateDir (if any) and
//     removed again on Close
//  2. Use: the orchestrator runs exactly one session at a time
//  3. Close: the context is closed and temporary data is removed
//
// # References
//
// Visual references are ids such as "login.submit" or "personal.gender:F".
// The Catalog maps the part before the colon to a CSS selector; a "%s" in
// the selector is replaced by the argument after the colon.
package browser
