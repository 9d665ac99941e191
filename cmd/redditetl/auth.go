package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"redditetl/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Reddit API credentials",
	Long: `Manage the Reddit API client credentials used by the extract stage.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (REDDITETL_CLIENT_ID / REDDITETL_CLIENT_SECRET, read only)`,
}

var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store Reddit API credentials",
	Long: `Store the client ID and secret of a Reddit script app. The secret is read
without echo. Without a name the credentials are stored as "default".`,
	Example: `  redditetl auth login
  redditetl auth login research`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	RunE:  runList,
}

var logoutAll bool

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored credential set")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultName
	if len(args) > 0 {
		name = args[0]
	}

	auth.ShowAppRegistrationGuide(os.Stdout)
	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(name); existing != nil && existing.Name == name {
		fmt.Printf("Credentials '%s' already exist. Replace them? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("Client ID: ")
	clientID, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read client ID: %w", err)
	}

	fmt.Print("Client secret (hidden): ")
	secret, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read client secret: %w", err)
	}

	fmt.Print("User agent (Enter for default): ")
	userAgent, _ := reader.ReadString('\n')

	creds := &auth.Credentials{
		Name:         name,
		ClientID:     strings.TrimSpace(clientID),
		ClientSecret: secret,
		UserAgent:    strings.TrimSpace(userAgent),
	}
	if err := manager.Store(creds); err != nil {
		return err
	}

	out.Success("Credentials saved: " + name)
	if name != auth.DefaultName {
		fmt.Printf("\nUse them with --account %s or 'account: %s' in the config file\n", name, name)
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(b)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return err
		}
		out.Success("All stored credentials removed")
		return nil
	}

	name := auth.DefaultName
	if len(args) > 0 {
		name = args[0]
	}
	if err := manager.Delete(name); err != nil {
		return err
	}
	out.Success("Credentials removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	all, err := manager.List()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		out.Info("No stored credentials", "use 'redditetl auth login' to add some")
		return nil
	}

	out.Highlight("Stored Credentials")
	for _, c := range all {
		s := auth.Sanitize(c)
		fmt.Println()
		rows := [][2]string{
			{"Name", s.Name},
			{"Client ID", s.ClientID},
			{"Secret", s.ClientSecret},
			{"Modified", s.LastModified.Format("2006-01-02 15:04:05")},
		}
		if s.UserAgent != "" {
			rows = append(rows, [2]string{"User agent", s.UserAgent})
		}
		out.Table(rows)
	}
	return nil
}
