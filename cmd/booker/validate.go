package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/entrhq/booker/pkg/profile"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the settings and every profile file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			matcher, err := settings.PatternMatcher()
			if err != nil {
				return err
			}
			loader, err := profile.NewLoader(settings.Paths.UsersDir, settings.Paths.KeysDir, matcher)
			if err != nil {
				return err
			}

			snapshot, errs := loader.Load()
			fmt.Println(profileTable(snapshot.Profiles()))
			for _, e := range errs {
				fmt.Println(errorStyle.Render("✗ " + e.Error()))
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d profile file(s) rejected", len(errs))
			}
			fmt.Println(okStyle.Render(fmt.Sprintf("✓ %d profile(s) valid", snapshot.Len())))
			return nil
		},
	}
}

func profileTable(profiles []profile.UserProfile) *table.Table {
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		earliest := "-"
		switch {
		case p.DaysFromNow != nil:
			earliest = fmt.Sprintf("+%d days", *p.DaysFromNow)
		case !p.MinDate.IsZero():
			earliest = p.MinDate.String()
		}
		rows = append(rows, []string{
			p.Alias,
			p.Country,
			p.Service,
			strings.Join(p.Consulates, ", "),
			earliest,
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ALIAS", "COUNTRY", "SERVICE", "CONSULATES", "EARLIEST").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}
