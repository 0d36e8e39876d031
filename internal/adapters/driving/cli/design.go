package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/alterPublics/issue-obervatory-sub001/internal/core/domain"
)

var designCmd = &cobra.Command{
	Use:   "design",
	Short: "Manage query designs",
}

var designImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a query design from a TOML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDesignImport,
}

var designListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored query designs",
	Args:  cobra.NoArgs,
	RunE:  runDesignList,
}

func init() {
	designCmd.AddCommand(designImportCmd)
	designCmd.AddCommand(designListCmd)
	rootCmd.AddCommand(designCmd)
}

// designDocument is the TOML shape of an importable query design.
type designDocument struct {
	ID                  string         `toml:"id"`
	Name                string         `toml:"name"`
	DefaultTier         string         `toml:"default_tier"`
	Method              string         `toml:"method"`
	LiveIntervalSeconds int64          `toml:"live_interval_seconds"`
	Terms               []termEntry    `toml:"terms"`
	Actors              []actorEntry   `toml:"actors"`
	Arenas              []arenaSetting `toml:"arenas"`
}

type termEntry struct {
	Text         string   `toml:"text"`
	Type         string   `toml:"type"`
	GroupID      string   `toml:"group_id"`
	TargetArenas []string `toml:"target_arenas"`
}

type actorEntry struct {
	ActorID  string `toml:"actor_id"`
	Platform string `toml:"platform"`
	Handle   string `toml:"handle"`
}

type arenaSetting struct {
	Platform string            `toml:"platform"`
	Enabled  bool              `toml:"enabled"`
	Tier     string            `toml:"tier"`
	Config   map[string]string `toml:"config"`
}

func runDesignImport(cmd *cobra.Command, args []string) error {
	if designStore == nil {
		return errors.New("design store not configured")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading design file: %w", err)
	}
	var doc designDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing design file: %w", err)
	}

	design, err := doc.toDomain()
	if err != nil {
		return err
	}
	if err := designStore.Save(context.Background(), *design); err != nil {
		return fmt.Errorf("saving design: %w", err)
	}

	cmd.Printf("Design %q saved (id %s)\n", design.Name, design.ID)
	return nil
}

func runDesignList(cmd *cobra.Command, args []string) error {
	if designStore == nil {
		return errors.New("design store not configured")
	}

	designs, err := designStore.List(context.Background())
	if err != nil {
		return fmt.Errorf("listing designs: %w", err)
	}
	if len(designs) == 0 {
		cmd.Println("No designs stored.")
		return nil
	}
	for i := range designs {
		design := &designs[i]
		cmd.Printf("%s  %s (%s, %d terms, %d arenas)\n",
			design.ID, design.Name, design.Method, len(design.Terms), len(design.Arenas))
	}
	return nil
}

func (doc *designDocument) toDomain() (*domain.QueryDesign, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("design needs a name: %w", domain.ErrInvalidInput)
	}
	if len(doc.Arenas) == 0 {
		return nil, fmt.Errorf("design needs at least one arena: %w", domain.ErrInvalidInput)
	}

	design := &domain.QueryDesign{
		ID:           doc.ID,
		Name:         doc.Name,
		LiveInterval: time.Duration(doc.LiveIntervalSeconds) * time.Second,
		CreatedAt:    time.Now().UTC(),
	}
	if design.ID == "" {
		design.ID = uuid.NewString()
	}

	if doc.DefaultTier != "" {
		tier, err := domain.ParseTier(doc.DefaultTier)
		if err != nil {
			return nil, err
		}
		design.DefaultTier = tier
	}

	switch doc.Method {
	case "", string(domain.MethodTerm):
		design.Method = domain.MethodTerm
	case string(domain.MethodActor):
		design.Method = domain.MethodActor
	default:
		return nil, fmt.Errorf("unknown method %q: %w", doc.Method, domain.ErrInvalidInput)
	}

	for _, entry := range doc.Terms {
		term := domain.SearchTerm{
			Text:         entry.Text,
			Type:         domain.TermType(entry.Type),
			GroupID:      entry.GroupID,
			TargetArenas: entry.TargetArenas,
		}
		if term.Type == "" {
			term.Type = domain.TermKeyword
		}
		design.Terms = append(design.Terms, term)
	}
	for _, entry := range doc.Actors {
		design.Actors = append(design.Actors, domain.ActorPresence{
			ActorID:  entry.ActorID,
			Platform: entry.Platform,
			Handle:   entry.Handle,
		})
	}
	for _, entry := range doc.Arenas {
		enablement := domain.ArenaEnablement{
			Platform: entry.Platform,
			Enabled:  entry.Enabled,
			Config:   entry.Config,
		}
		if entry.Tier != "" {
			tier, err := domain.ParseTier(entry.Tier)
			if err != nil {
				return nil, err
			}
			enablement.TierOverride = &tier
		}
		design.Arenas = append(design.Arenas, enablement)
	}
	return design, nil
}
