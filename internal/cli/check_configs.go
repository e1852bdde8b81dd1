package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"siteclone/internal/config"
	"siteclone/internal/prompt"
)

func newCheckConfigsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-configs [dir]",
		Short: "Validate every config file in a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := config.DefaultConfigDir
			if len(args) == 1 {
				dir = args[0]
			}
			dir = resolveDir(dir)

			files, err := os.ReadDir(dir)
			if err != nil {
				return fmt.Errorf("read configs dir: %w", err)
			}

			w := cmd.OutOrStdout()
			checked, failed := 0, 0
			for _, f := range files {
				name := f.Name()
				if f.IsDir() || !isConfigFile(name) {
					continue
				}
				checked++
				if err := checkConfig(filepath.Join(dir, name)); err != nil {
					failed++
					fmt.Fprintf(w, "%s: INVALID (%v)\n", name, err)
					continue
				}
				fmt.Fprintf(w, "%s: OK\n", name)
			}

			if checked == 0 {
				fmt.Fprintf(w, "No config files in %s\n", dir)
			}
			if failed > 0 {
				return ExitError{Code: 1, Err: fmt.Errorf("%d of %d configs invalid", failed, checked)}
			}
			return nil
		},
	}
}

func isConfigFile(name string) bool {
	ext := filepath.Ext(name)
	if ext != ".json5" && ext != ".json" {
		return false
	}
	return !strings.HasSuffix(strings.TrimSuffix(name, ext), ".local")
}

// checkConfig loads path the way serve would, including its template file.
func checkConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	popts, err := cfg.PromptOptions()
	if err != nil {
		return err
	}
	if _, err := prompt.NewBuilder(popts); err != nil {
		return err
	}
	if _, err := cfg.GenerateOptions(); err != nil {
		return err
	}
	_, err = cfg.FetchOptions()
	return err
}

func resolveDir(dir string) string {
	if strings.TrimSpace(dir) != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}
	for _, candidate := range config.SearchDirs() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return dir
}
