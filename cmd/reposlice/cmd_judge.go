// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/SliceFOSS/services/slice/request"
	"github.com/AleutianAI/SliceFOSS/services/slice/scoring"
)

// Judge command flag values.
var judgeOracleDir string

var judgeCmd = &cobra.Command{
	Use:   "judge <request-id> <result.json>",
	Short: "Score a slice report against ground truth",
	Long: `Judge compares a report's relevant-line mapping against the ground
truth file <oracle-dir>/<request-id>.json and prints precision, recall
and F1, per function and overall. Lines listed in the ground truth's
whitelist are ignored on both sides.`,
	Args: cobra.ExactArgs(2),
	RunE: judgeSlice,
}

func init() {
	judgeCmd.Flags().StringVar(&judgeOracleDir, "oracle-dir", "oracle", "Directory containing ground-truth files")
}

func judgeSlice(_ *cobra.Command, args []string) error {
	requestID, resultPath := args[0], args[1]

	truthPath := filepath.Join(judgeOracleDir, requestID+".json")
	truthData, err := os.ReadFile(truthPath)
	if err != nil {
		return fmt.Errorf("reading ground truth %s: %w", truthPath, err)
	}
	var truth scoring.GroundTruth
	if err := json.Unmarshal(truthData, &truth); err != nil {
		return fmt.Errorf("parsing ground truth %s: %w", truthPath, err)
	}

	report, err := request.LoadReport(resultPath)
	if err != nil {
		return err
	}

	scored, err := scoring.Judge(report.Relevant, &truth)
	if err != nil {
		return err
	}
	scored.RequestID = requestID

	out, err := json.MarshalIndent(scored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling score report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
