package root

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"questguild/internal/config"
	"questguild/internal/platform/otel"
)

const Version = "0.1.0"

var (
	cfg           config.Config
	flagDB        string
	flagUser      string
	flagTZ        string
	shutdownTrace = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "qg",
	Short:         "Questguild: tasks, bosses and guild missions",
	Long:          "Questguild is a gamified task tracker. Completing tasks earns XP, levels spawn bosses, and guilds share special missions.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if strings.TrimSpace(flagDB) != "" {
			loaded.DBPath = flagDB
		}
		if strings.TrimSpace(flagUser) != "" {
			loaded.User = flagUser
		}
		if strings.TrimSpace(flagTZ) != "" {
			loaded.Timezone = flagTZ
		}
		cfg = loaded

		shutdown, err := otel.Setup(cmd.Context(), otel.Options{
			ServiceName: "questguild",
			Endpoint:    cfg.OTelEndpoint,
			Enabled:     cfg.OTelEnabled,
		})
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		shutdownTrace = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return shutdownTrace(context.Background())
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (default ~/.questguild.db)")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "Act as this user id")
	rootCmd.PersistentFlags().StringVar(&flagTZ, "tz", "", "Timezone for quota calendars")

	rootCmd.AddCommand(
		newRegisterCmd(),
		newTaskCmd(),
		newStatusCmd(),
		newAchievementsCmd(),
		newBossCmd(),
		newShopCmd(),
		newGuildCmd(),
		newMissionCmd(),
		newSweepCmd(),
		newBoardCmd(),
		newServeCmd(),
	)
}

// Execute runs the command tree and flushes tracing on the way out.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		_ = shutdownTrace(context.Background())
	}
	return err
}
