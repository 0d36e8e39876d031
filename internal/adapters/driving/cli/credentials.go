package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

var (
	credentialTier  string
	credentialLabel string
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the shared credential pool",
}

var credentialsAddCmd = &cobra.Command{
	Use:   "add [platform]",
	Short: "Add a credential to the pool",
	Long: `Adds a credential for an arena to the shared pool. The secret is
read from stdin; on a terminal the input is hidden.`,
	Args: cobra.ExactArgs(1),
	RunE: runCredentialsAdd,
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pooled credentials (secrets are never printed)",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsList,
}

func init() {
	credentialsAddCmd.Flags().StringVar(&credentialTier, "tier", "free", "tier the credential unlocks (free, medium, premium)")
	credentialsAddCmd.Flags().StringVar(&credentialLabel, "label", "", "operator-facing note")

	credentialsCmd.AddCommand(credentialsAddCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func runCredentialsAdd(cmd *cobra.Command, args []string) error {
	if credentials == nil {
		return errors.New("credential pool not configured")
	}

	platform := args[0]
	if catalog != nil {
		if _, err := catalog.Lookup(platform); err != nil {
			return err
		}
	}

	tier, err := domain.ParseTier(credentialTier)
	if err != nil {
		return err
	}

	secret, err := readSecret(cmd)
	if err != nil {
		return err
	}
	if secret == "" {
		return fmt.Errorf("empty secret: %w", domain.ErrInvalidInput)
	}

	cred := domain.Credential{
		ID:        uuid.NewString(),
		Platform:  platform,
		Tier:      tier,
		Secret:    secret,
		Status:    domain.CredentialActive,
		Label:     credentialLabel,
		CreatedAt: time.Now().UTC(),
	}
	if err := credentials.Add(context.Background(), cred); err != nil {
		return fmt.Errorf("adding credential: %w", err)
	}

	cmd.Printf("Credential added for %s (%s)\n", platform, tier)
	return nil
}

func runCredentialsList(cmd *cobra.Command, args []string) error {
	if credentials == nil {
		return errors.New("credential pool not configured")
	}

	pooled, err := credentials.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing credentials: %w", err)
	}
	if len(pooled) == 0 {
		cmd.Println("The credential pool is empty.")
		return nil
	}
	for i := range pooled {
		cred := &pooled[i]
		line := fmt.Sprintf("%-12s %-8s %s", cred.Platform, cred.Tier, cred.Status)
		if cred.Label != "" {
			line += "  " + cred.Label
		}
		cmd.Println(line)
	}
	return nil
}

// readSecret reads the secret from stdin, hiding the input on a TTY.
func readSecret(cmd *cobra.Command) (string, error) {
	stdin := int(os.Stdin.Fd())
	if term.IsTerminal(stdin) {
		cmd.Print("Secret: ")
		secret, err := term.ReadPassword(stdin)
		cmd.Println()
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
