package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/toolbridge/toolbridge/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show toolbridge status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath()
	}

	fmt.Println("toolbridge Status")
	fmt.Println()

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	_, wsErr := os.Stat(ws)
	wsMark := "✗"
	if wsErr == nil {
		wsMark = "✓"
	}

	fmt.Printf("Workspace: %s %s\n", ws, wsMark)
	fmt.Printf("Model:     %s (%s)\n", cfg.Model.Model, cfg.Model.Backend)
	fmt.Printf("Gateway:   %s\n\n", cfg.Gateway.Addr)

	fmt.Println("Providers:")
	if len(cfg.Providers) == 0 {
		fmt.Println("  (none configured)")
	}
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := cfg.Providers[name]
		cmdline := p.Command
		if len(p.Args) > 0 {
			cmdline += " " + strings.Join(p.Args, " ")
		}
		fmt.Printf("  %-20s %s\n", name, cmdline)
	}

	if len(cfg.Schedules) > 0 {
		fmt.Println()
		fmt.Println("Schedules:")
		for _, s := range cfg.Schedules {
			fmt.Printf("  %-20s %s\n", s.Name, s.Cron)
		}
	}
	return nil
}
