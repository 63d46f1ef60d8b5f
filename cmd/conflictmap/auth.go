package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"conflictmap/pkg/auth"
	"conflictmap/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage tile and dataset credentials",
	Long: `Manage stored credentials securely.

Two services are known:
  - mapbox: access token for tile URLs containing {accessToken}
  - acled:  API key and registered email for dataset downloads

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:       "login [service]",
	Short:     "Store a service credential securely",
	ValidArgs: auth.Services,
	Example: `  # Choose the service interactively
  conflictmap auth login

  # Store the Mapbox token
  conflictmap auth login mapbox`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [service]",
	Short: "Remove stored credentials",
	Long: `Remove a stored credential. Without a service you are asked which one to
remove, or whether to remove all of them.`,
	ValidArgs: auth.Services,
	Args:      cobra.MaximumNArgs(1),
	RunE:      runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	Long:  `List stored credentials with their secrets masked.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initializing credential manager: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)

	var service string
	if len(args) > 0 {
		service = strings.ToLower(args[0])
	} else {
		service, err = chooseService(reader, "Select service to configure:")
		if err != nil {
			return err
		}
	}
	if !auth.IsKnownService(service) {
		return fmt.Errorf("unknown service %q (known: %s)", service, strings.Join(auth.Services, ", "))
	}

	auth.ShowTokenGuide(ui.Output, service)

	cred := &auth.Credential{Service: service}
	for {
		fmt.Fprint(ui.Output, "\nToken (input hidden): ")
		token, err := readPassword(reader)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		cred.Token = strings.TrimSpace(token)
		if cred.Token != "" {
			break
		}
		ui.PrintError("Token cannot be empty")
	}

	if service == auth.ServiceACLED {
		for cred.Email == "" {
			fmt.Fprint(ui.Output, "Registered email: ")
			email, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading email: %w", err)
			}
			cred.Email = strings.TrimSpace(email)
		}
	}
	cred.LastModified = time.Now()

	if err := auth.Validate(cred); err != nil {
		return err
	}

	fmt.Fprintln(ui.Output, "\nStoring credentials securely...")
	if err := manager.Store(cred); err != nil {
		return fmt.Errorf("storing credentials: %w", err)
	}

	masked := auth.Sanitize(cred)
	ui.PrintSuccess(fmt.Sprintf("Stored %s credential %s", service, masked.Token))
	fmt.Fprintln(ui.Output, "\nNever share your credentials or config files!")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("initializing credential manager: %w", err)
	}

	if len(args) > 0 {
		service := strings.ToLower(args[0])
		if err := manager.Delete(service); err != nil {
			return fmt.Errorf("removing %s: %w", service, err)
		}
		ui.PrintSuccess("Credential removed: " + service)
		return nil
	}

	stored, err := manager.List()
	if err != nil || len(stored) == 0 {
		ui.PrintInfo("No stored credentials", "nothing to remove")
		return nil
	}

	fmt.Fprintln(ui.Output, "Select credential to remove:")
	for i, cred := range stored {
		fmt.Fprintf(ui.Output, "  %d. %s\n", i+1, cred.Service)
	}
	fmt.Fprintf(ui.Output, "  %d. Remove all credentials\n", len(stored)+1)
	fmt.Fprintf(ui.Output, "  0. Cancel\n\n")

	reader := bufio.NewReader(os.Stdin)
	fmt.Fprint(ui.Output, "Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return nil
	case choice == len(stored)+1:
		fmt.Fprint(ui.Output, "Remove ALL credentials? This cannot be undone! (yes/N): ")
		confirm, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("removing credentials: %w", err)
		}
		ui.PrintSuccess("All credentials removed")
	case choice > 0 && choice <= len(stored):
		service := stored[choice-1].Service
		if err := manager.Delete(service); err != nil {
			return fmt.Errorf("removing %s: %w", service, err)
		}
		ui.PrintSuccess("Credential removed: " + service)
	default:
		return fmt.Errorf("invalid choice %q", strings.TrimSpace(input))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager := credentials()

	stored, err := manager.List()
	if err != nil {
		return fmt.Errorf("listing credentials: %w", err)
	}
	if len(stored) == 0 {
		ui.PrintInfo("No stored credentials", "Use 'conflictmap auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored Credentials")
	fmt.Fprintln(ui.Output)
	for i, cred := range stored {
		masked := auth.Sanitize(cred)
		fmt.Fprintf(ui.Output, "%d. Service: %s\n", i+1, masked.Service)
		fmt.Fprintf(ui.Output, "   Token: %s\n", masked.Token)
		if masked.Email != "" {
			fmt.Fprintf(ui.Output, "   Email: %s\n", masked.Email)
		}
		if !masked.LastModified.IsZero() {
			fmt.Fprintf(ui.Output, "   Last Modified: %s\n", masked.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(ui.Output)
	}
	return nil
}

func chooseService(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprintln(ui.Output, prompt)
	for i, s := range auth.Services {
		fmt.Fprintf(ui.Output, "  %d. %s\n", i+1, s)
	}
	fmt.Fprint(ui.Output, "\nChoice: ")
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading choice: %w", err)
	}

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
	if choice < 1 || choice > len(auth.Services) {
		return "", fmt.Errorf("invalid choice %q", strings.TrimSpace(input))
	}
	return auth.Services[choice-1], nil
}

// readPassword reads a secret from stdin without echoing when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(ui.Output)
		if err == nil {
			return string(secret), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
