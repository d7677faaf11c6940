package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake"
	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var errInvalidText = errors.New("problem text is invalid")

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [text...]",
		Short: "Validate a problem description the same way the gateway does",
		Long: `Validate a problem description without touching the rate limiter.
The text comes from the arguments or, when none are given, from stdin.
Limits (TEXT_MIN_LENGTH, TEXT_MIN_WORDS, TEXT_MIN_UNIQUE_RATIO) and the
default policy (VALIDATION_POLICY) come from --config and the environment,
exactly as in serve.

  --policy text   length, word count and repetition checks (default)
  --policy input  non-empty, 10..5000 characters and a valid --domain`,
		RunE: runValidate,
	}
	cmd.Flags().String("policy", "text", "validation policy: text or input")
	cmd.Flags().String("domain", "", "problem domain for --policy input (technical, business, strategic)")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validation.validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	policyName := cfg.Validation.Policy
	if cmd.Flags().Changed("policy") {
		policyName, _ = cmd.Flags().GetString("policy")
	}
	dom, _ := cmd.Flags().GetString("domain")
	asJSON, _ := cmd.Flags().GetBool("json")

	policy, err := intake.ParsePolicy(policyName)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		text = string(raw)
	}

	res := cfg.Validation.validator(policy).Validate(intake.SubmissionRequest{Problem: text, Domain: dom})

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printValidation(out, res)
	}

	if !res.Valid {
		return errInvalidText
	}
	return nil
}

func printValidation(w io.Writer, res domain.ValidationResult) {
	if res.Valid {
		fmt.Fprintln(w, color.GreenString("✔ valid"))
		return
	}
	fmt.Fprintln(w, color.RedString("✘ invalid"))
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  - %s\n", color.YellowString(e))
	}
}
