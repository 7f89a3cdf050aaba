package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chibi-cli/chibi/internal/tools/coding"
)

func newIndexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "inspect and refresh the codebase index",
	}
	cmd.AddCommand(newIndexUpdateCommand(), newIndexQueryCommand(), newIndexStatusCommand())
	return cmd
}

func newIndexUpdateCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "incrementally refresh the codebase index",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			store, err := app.IndexStore()
			if err != nil {
				return err
			}
			res := coding.IndexUpdate(cmd.Context(), store, projectRoot, app.ChibiHome+"/plugins", force)
			printResult(res.ForLLM)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reindex every file, even those whose mtime and size are unchanged")
	return cmd
}

func newIndexQueryCommand() *cobra.Command {
	var name, file, kind, ref string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "query indexed files, symbols, and references",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			store, err := app.IndexStore()
			if err != nil {
				return err
			}
			res := coding.IndexQuery(cmd.Context(), store, name, file, kind, ref)
			printResult(res.ForLLM)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "symbol name substring")
	cmd.Flags().StringVar(&file, "file", "", "file path substring")
	cmd.Flags().StringVar(&kind, "kind", "", "exact symbol kind")
	cmd.Flags().StringVar(&ref, "ref", "", "reference target substring")
	return cmd
}

func newIndexStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "report index summary counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			store, err := app.IndexStore()
			if err != nil {
				return err
			}
			res := coding.IndexStatus(cmd.Context(), store)
			printResult(res.ForLLM)
			return nil
		},
	}
}

func printResult(forLLM string) {
	fmt.Println(forLLM)
}
