package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/infra"

	"github.com/spf13/cobra"
)

func newSubmissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List accepted submissions of a visitor from the submission log",
		RunE:  runSubmissions,
	}
	cmd.Flags().String("db", "", "submission log path (defaults to SUBMISSION_LOG_PATH)")
	cmd.Flags().String("visitor", "", "visitor id")
	cmd.Flags().Int("limit", 20, "maximum number of submissions (0 = all)")
	return cmd
}

type submissionLine struct {
	ID         string    `json:"id"`
	VisitorID  string    `json:"visitorId"`
	Domain     string    `json:"domain,omitempty"`
	Problem    string    `json:"problem"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func runSubmissions(cmd *cobra.Command, _ []string) error {
	dbPath, _ := cmd.Flags().GetString("db")
	visitor, _ := cmd.Flags().GetString("visitor")
	limit, _ := cmd.Flags().GetInt("limit")

	if dbPath == "" {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		dbPath = cfg.SubmissionLogPath
	}
	if dbPath == "" {
		return errors.New("--db or SUBMISSION_LOG_PATH is required")
	}
	if visitor == "" {
		return errors.New("--visitor is required")
	}

	subLog, err := infra.NewSQLiteSubmissionLog(dbPath)
	if err != nil {
		return err
	}
	defer subLog.Close()

	subs, err := subLog.ListByVisitor(cmd.Context(), domain.Key(visitor), limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, s := range subs {
		line := submissionLine{
			ID:         s.ID,
			VisitorID:  string(s.VisitorID),
			Domain:     string(s.Domain),
			Problem:    s.Text,
			ReceivedAt: s.ReceivedAt.UTC(),
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("writing submission: %w", err)
		}
	}
	return nil
}
