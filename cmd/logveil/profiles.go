package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logveil/logveil/internal/profile"
)

func init() {
	cmd := &cobra.Command{
		Use:   "profiles [name]",
		Short: "List available redaction profiles",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProfiles,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVar(&flagProfilesDir, "profiles-dir", "", "load additional profiles from a directory")
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagProfilesDir != "" {
		cfg.Redaction.ProfilesDir = flagProfilesDir
	}
	// Listing never needs a file watcher
	cfg.Redaction.Watch = false

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	manager, store, err := buildProfiles(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		return showProfile(manager, args[0])
	}

	for _, name := range manager.List() {
		p, ok := manager.Get(name)
		if !ok {
			continue
		}
		entropy := "off"
		if p.Entropy.Enabled {
			entropy = fmt.Sprintf("%.1f/%d", p.Entropy.Threshold, p.Entropy.MinLength)
		}
		fmt.Printf("%-14s rules=%-3d keypaths=%-3d entropy=%-8s %s\n",
			p.Name, len(p.Rules), len(p.KeyPaths), entropy, p.Description)
	}
	return nil
}

func showProfile(manager *profile.Manager, name string) error {
	p, ok := manager.Get(name)
	if !ok {
		return fmt.Errorf("unknown profile: %s", name)
	}

	fmt.Printf("profile: %s (version %s)\n", p.Name, p.Version)
	if p.Description != "" {
		fmt.Printf("  %s\n", p.Description)
	}
	fmt.Println("rules:")
	for _, r := range p.Rules {
		state := ""
		if !r.Enabled {
			state = " (disabled)"
		}
		fmt.Printf("  %-20s %s -> %s%s\n", r.Name, r.Pattern.String(), r.Replacement, state)
	}
	if p.Entropy.Enabled {
		fmt.Printf("entropy: threshold=%.2f min_length=%d\n", p.Entropy.Threshold, p.Entropy.MinLength)
	}
	if len(p.KeyPaths) > 0 {
		fmt.Println("key paths:")
		for _, kp := range p.KeyPaths {
			fmt.Printf("  %-30s %s\n", kp.Path, kp.Action)
		}
	}
	if len(p.FilenamePatterns) > 0 {
		fmt.Printf("filename patterns: %v\n", p.FilenamePatterns)
	}
	return nil
}
