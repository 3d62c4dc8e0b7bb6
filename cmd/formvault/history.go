// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tallyforge/formvault"
	"github.com/tallyforge/formvault/database"
	"github.com/tallyforge/formvault/history"
	"github.com/tallyforge/formvault/internal/config"
	"github.com/tallyforge/formvault/internal/node"
)

// openHistory opens the configured stores for a one-shot admin command.
// The returned func closes them.
func openHistory(cmd *cobra.Command) (*history.Service, func(), error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return nil, nil, errors.New("no config found in context")
	}
	logger := newLogger(os.Stderr, slog.LevelWarn)
	fvCfg := formvault.NewConfig(
		formvault.WithLogger(logger),
		formvault.WithDataDir(cfg.DataDir),
		formvault.WithBlobPlugin(cfg.BlobPlugin),
		formvault.WithMetadataPlugin(cfg.MetadataPlugin),
	)
	db, err := database.New(fvCfg.DatabaseConfig())
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	svc, err := history.New(
		db,
		history.WithLogger(logger),
		history.WithAuthorDirectory(node.AuthorDirectory(cfg)),
		history.WithMaxIDAttempts(cfg.MaxIDAttempts),
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return svc, func() { _ = db.Close() }, nil
}

func parseFormID(arg string) (uint, error) {
	formID, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || formID == 0 {
		return 0, fmt.Errorf("invalid form ID %q", arg)
	}
	return uint(formID), nil
}

func readSchema(path string) (json.RawMessage, error) {
	if path == "" {
		return nil, nil
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	return json.RawMessage(data), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printVersion(v *history.Version) {
	fmt.Printf("ID:          %s\n", v.ID)
	fmt.Printf("Form:        %d\n", v.FormID)
	fmt.Printf("Published:   %t\n", v.IsPublished)
	fmt.Printf("Parent:      %s\n", v.ParentVersionID())
	fmt.Printf("Operation:   %s\n", v.Metadata.Operation)
	fmt.Printf("Created:     %s\n", v.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Created by:  %s\n", v.CreatedBy)
	if v.Description != "" {
		fmt.Printf("Description: %s\n", v.Description)
	}
	if v.Metadata.AuditDescription != "" {
		fmt.Printf("Audit:       %s\n", v.Metadata.AuditDescription)
	}
}

func formCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Form management commands",
	}
	var owner, description string
	var public bool
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			form, err := svc.CreateForm(
				cmd.Context(),
				owner,
				history.CreateFormInput{
					Name:        args[0],
					Description: description,
					IsPublic:    public,
				},
			)
			if err != nil {
				return err
			}
			fmt.Printf("created form %d\n", form.ID)
			return nil
		},
	}
	createCmd.Flags().StringVar(&owner, "owner", "", "user ID of the form owner")
	createCmd.Flags().StringVar(&description, "description", "", "form description")
	createCmd.Flags().BoolVar(&public, "public", false, "accept anonymous submissions")
	_ = createCmd.MarkFlagRequired("owner")
	cmd.AddCommand(createCmd)
	return cmd
}

func versionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions <formId>",
		Short: "List a form's version history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formID, err := parseFormID(args[0])
			if err != nil {
				return err
			}
			svc, closeFn, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			list, err := svc.ListVersions(cmd.Context(), formID)
			if err != nil {
				return err
			}
			if len(list.Versions) == 0 {
				fmt.Println("No versions.")
				return nil
			}
			fmt.Printf(
				"%-26s  %-4s  %-10s  %-20s  %s\n",
				"ID",
				"LIVE",
				"OPERATION",
				"CREATED",
				"AUTHOR",
			)
			for _, v := range list.Versions {
				live := ""
				if v.ID == list.LiveVersionID {
					live = "*"
				}
				author := v.CreatedBy
				if v.Author != nil && v.Author.DisplayName != "" {
					author = v.Author.DisplayName
				}
				fmt.Printf(
					"%-26s  %-4s  %-10s  %-20s  %s\n",
					v.ID,
					live,
					v.Metadata.Operation,
					v.CreatedAt.Format(time.RFC3339),
					author,
				)
			}
			return nil
		},
	}
	return cmd
}

func createVersionCommand() *cobra.Command {
	var actor, schemaPath, parent, description string
	var publish bool
	cmd := &cobra.Command{
		Use:   "create-version <formId>",
		Short: "Add a version to a form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formID, err := parseFormID(args[0])
			if err != nil {
				return err
			}
			schema, err := readSchema(schemaPath)
			if err != nil {
				return err
			}
			svc, closeFn, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			v, err := svc.CreateVersion(
				cmd.Context(),
				formID,
				actor,
				history.CreateVersionInput{
					Schema:          schema,
					Description:     description,
					ParentVersionID: parent,
					Publish:         publish,
				},
			)
			if err != nil {
				return err
			}
			printVersion(v)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "user ID recorded as the author")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema JSON file, '-' for stdin")
	cmd.Flags().StringVar(&parent, "parent", "", "parent version ID")
	cmd.Flags().StringVar(&description, "description", "", "version description")
	cmd.Flags().BoolVar(&publish, "publish", false, "make the new version live")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func publishCommand() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "publish <formId> <versionId>",
		Short: "Make a version live",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			formID, err := parseFormID(args[0])
			if err != nil {
				return err
			}
			svc, closeFn, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			v, err := svc.Publish(cmd.Context(), formID, args[1], actor)
			if err != nil {
				return err
			}
			printVersion(v)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "user ID recorded for the change")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func revertCommand() *cobra.Command {
	var actor, description string
	cmd := &cobra.Command{
		Use:   "revert <force-reset|make-live|make-latest> <formId> <versionId>",
		Short: "Revert a form's history to a version",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := history.ParseStrategy(args[0], description)
			if err != nil {
				return err
			}
			formID, err := parseFormID(args[1])
			if err != nil {
				return err
			}
			svc, closeFn, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			result, err := svc.Revert(cmd.Context(), formID, args[2], actor, strategy)
			if err != nil {
				return err
			}
			printVersion(result.Version)
			if !result.Changed {
				fmt.Println("Nothing changed.")
			}
			for _, id := range result.DeletedVersionIDs {
				fmt.Printf("Deleted:     %s\n", id)
			}
			if result.ReassignedSubmissions > 0 {
				fmt.Printf("Moved %d submission(s)\n", result.ReassignedSubmissions)
			}
			if len(result.DeletedVersionIDs) > 0 && !result.Archived {
				fmt.Println("Deleted versions were not archived.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "user ID recorded for the change")
	cmd.Flags().StringVar(&description, "description", "", "description of the new version (make-latest)")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func archiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <formId>",
		Short: "Print the versions removed from a form by force resets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formID, err := parseFormID(args[0])
			if err != nil {
				return err
			}
			svc, closeFn, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			archived, err := svc.ListArchivedVersions(cmd.Context(), formID)
			if err != nil {
				return err
			}
			return printJSON(archived)
		},
	}
	return cmd
}
