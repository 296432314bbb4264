package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/orchestration"
)

// Factory function variables for auth - can be replaced in tests.
var (
	storeCredential  = config.StoreCredential
	deleteCredential = config.DeleteCredential
	lookupCredential = config.LookupCredential

	// promptSecret asks for a secret without echoing it.
	promptSecret = func(ctx context.Context, title string) (string, error) {
		var value string
		err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&value),
		)).RunWithContext(ctx)
		return value, err
	}

	stdin io.Reader = os.Stdin
)

// AuthSet stores a credential in the OS keyring. On a terminal it prompts;
// otherwise the secret is read from the first line of stdin.
func AuthSet(ctx context.Context, name string) error {
	c, err := config.ParseCredential(name)
	if err != nil {
		return err
	}

	var value string
	if stdinIsTerminal() {
		value, err = promptSecret(ctx, fmt.Sprintf("Value for %s", c))
	} else {
		value, err = readLine(stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c, err)
	}

	if err := storeCredential(c, strings.TrimSpace(value)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Stored %s in the keyring. %s still takes precedence when set.\n", c, c.EnvVar())
	return nil
}

// AuthDelete removes a credential from the OS keyring.
func AuthDelete(_ context.Context, name string) error {
	c, err := config.ParseCredential(name)
	if err != nil {
		return err
	}
	if err := deleteCredential(c); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Removed %s from the keyring.\n", c)
	return nil
}

// AuthStatus lists which credentials resolve, without printing them.
func AuthStatus(_ context.Context) error {
	for _, c := range config.AllCredentials {
		status := sectionStyle.Render("ok")
		if _, err := lookupCredential(c); err != nil {
			status = statusStyles[orchestration.StatusFailed].Render("missing")
		}
		fmt.Fprintf(stdout, "  %-16s %s\n", c, status)
	}
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
