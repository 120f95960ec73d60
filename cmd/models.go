package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/llm"
)

var modelsProvider string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models",
	Long: `List the models configured for the server. With --provider,
query that provider's /models endpoint instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		if modelsProvider == "" {
			for _, name := range cfg.ModelNames() {
				fmt.Println(name)
			}
			return nil
		}

		provider, ok := cfg.Providers[modelsProvider]
		if !ok {
			return fmt.Errorf("unknown provider %q", modelsProvider)
		}
		client := llm.NewClient(provider.BaseURL, provider.APIKey)
		models, err := client.ListModels(cmd.Context())
		if err != nil {
			return err
		}
		for _, m := range models {
			fmt.Println(m.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringVar(&modelsProvider, "provider", "", "Query this provider's live model list")
}
