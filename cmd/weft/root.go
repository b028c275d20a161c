// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"github.com/spf13/cobra"
	"github.com/teradata-labs/weft/internal/version"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "weft",
		Short:        "Multi-stage request triage and planning pipeline",
		Long:         "weft classifies, optimizes, plans, and reports on operational requests\nthrough a supervised multi-stage pipeline with per-user progress events.",
		Version:      version.String(),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches . and $WEFT_DATA_DIR)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRunCmd())
	return cmd
}
