package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/entrhq/booker/pkg/profile"
)

func sealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Seal a key password for a profile file",
		Long: `Reads a key password and prints the sealed value for the key_password
field of a profile. The passphrase is taken from ` + profile.PassphraseEnv + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword()
			if err != nil {
				return err
			}
			defer profile.Wipe(password)
			if len(password) == 0 {
				return fmt.Errorf("empty password")
			}

			sealed, err := profile.NewVaultFromEnv().Seal(password)
			if err != nil {
				return err
			}
			fmt.Println(sealed)
			return nil
		},
	}
}

// readPassword prompts on a terminal with echo disabled, or reads the first
// line of stdin when it is piped.
func readPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Key password: ")
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("reading password: %w", err)
		}
		return password, nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}
