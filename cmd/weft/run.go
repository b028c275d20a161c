// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teradata-labs/weft/pkg/orchestration"
)

func newRunCmd() *cobra.Command {
	var (
		userID string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "run [request text]",
		Short: "Run one request through the pipeline and print the record",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cfgFile)
			if err != nil {
				return err
			}
			defer rt.close()

			rec, err := rt.supervisor.Run(cmd.Context(), orchestration.RunOptions{
				UserID:  userID,
				Request: strings.Join(args, " "),
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			fmt.Printf("run:   %s\n", rec.RunID)
			fmt.Printf("steps: %d\n", rec.Steps)
			if reason := rec.Meta.Tags[orchestration.TagRejected]; reason != "" {
				fmt.Printf("rejected: %s\n", reason)
				return nil
			}
			for stageName, result := range rec.Results {
				if result == nil {
					continue
				}
				fmt.Printf("\n[%s] %s (confidence %.2f", stageName, result.Category, result.Confidence)
				if result.Meta.CacheHit {
					fmt.Print(", cached")
				}
				if result.Meta.FallbackUsed {
					fmt.Print(", fallback")
				}
				fmt.Println(")")
				if result.Summary != "" {
					fmt.Println(result.Summary)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "cli", "user id to attribute the run to")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full record as JSON")
	return cmd
}
