package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

var arenasCmd = &cobra.Command{
	Use:   "arenas",
	Short: "Inspect the arena catalogue",
}

var arenasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered arenas and their capabilities",
	Args:  cobra.NoArgs,
	RunE:  runArenasList,
}

func init() {
	arenasCmd.AddCommand(arenasListCmd)
	rootCmd.AddCommand(arenasCmd)
}

func runArenasList(cmd *cobra.Command, args []string) error {
	if catalog == nil {
		return errors.New("arena catalog not configured")
	}

	descriptors := catalog.ListAll()
	if len(descriptors) == 0 {
		cmd.Println("No arenas registered.")
		return nil
	}

	for i := range descriptors {
		desc := &descriptors[i]
		cmd.Printf("%s (%s, %s)\n", desc.Platform, desc.Name, desc.Category)
		cmd.Printf("  tiers: %s\n", tierList(desc))
		cmd.Printf("  modes: %s\n", modeList(desc))
		if desc.Stub {
			cmd.Println("  status: declared, not yet implemented")
		}
		cmd.Println()
	}
	return nil
}

func tierList(desc *domain.ArenaDescriptor) string {
	parts := make([]string, 0, len(desc.Tiers))
	for _, tier := range desc.Tiers {
		label := tier.String()
		if desc.RequiresCredential(tier) {
			label += " (credential required)"
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, ", ")
}

func modeList(desc *domain.ArenaDescriptor) string {
	parts := make([]string, 0, len(desc.Modes))
	for _, mode := range desc.Modes {
		parts = append(parts, string(mode))
	}
	return strings.Join(parts, ", ")
}
