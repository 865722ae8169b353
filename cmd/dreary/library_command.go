package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dreary/internal/config"
	"dreary/internal/library"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Manage book, shelf, and shelfitem records",
	}
	libraryCmd.AddCommand(newLibraryBookCommand(ctx))
	libraryCmd.AddCommand(newLibraryShelfCommand(ctx))
	libraryCmd.AddCommand(newLibraryShelveCommand(ctx))
	libraryCmd.AddCommand(newLibraryBooksCommand(ctx))
	return libraryCmd
}

func (c *commandContext) newLibrary(cmd *cobra.Command, sess *importSession) *library.Library {
	return library.New(sess.client, sess.uploader, c.prompterFor(cmd), sess.cfg.ATProto.BatchSize, sess.logger)
}

func newLibraryBookCommand(ctx *commandContext) *cobra.Command {
	var skipVerify bool
	cmd := &cobra.Command{
		Use:   "book [file]",
		Short: "Upload a book file with its metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.argOrPrompt(cmd, args, 0, "Input a book file path: ")
			if err != nil || path == "" {
				return err
			}
			if path, err = config.ExpandPath(path); err != nil {
				return err
			}
			return ctx.runImport(cmd, "library", path, func(runCtx context.Context, sess *importSession) (importOutcome, error) {
				uri, err := ctx.newLibrary(cmd, sess).CreateBook(runCtx, path, !skipVerify)
				if err != nil {
					return importOutcome{}, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created book %s\n", uri)
				return importOutcome{Created: 1}, nil
			})
		},
	}
	cmd.Flags().BoolVarP(&skipVerify, "yes", "y", false, "Accept extracted metadata without review")
	return cmd
}

func newLibraryShelfCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shelf",
		Short: "Create a shelf interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runImport(cmd, "library", "shelf", func(runCtx context.Context, sess *importSession) (importOutcome, error) {
				uri, err := ctx.newLibrary(cmd, sess).PromptShelf(runCtx)
				if err != nil {
					return importOutcome{}, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created shelf %s\n", uri)
				return importOutcome{Created: 1}, nil
			})
		},
	}
}

func newLibraryShelveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "shelve",
		Short: "Add books to a shelf interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runImport(cmd, "library", "shelve", func(runCtx context.Context, sess *importSession) (importOutcome, error) {
				count, err := ctx.newLibrary(cmd, sess).AddBooksToShelf(runCtx)
				if err != nil {
					return importOutcome{Created: count}, err
				}
				if count > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %d books to the shelf\n", count)
				}
				return importOutcome{Created: count}, nil
			})
		},
	}
}

func newLibraryBooksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List book records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, func(runCtx context.Context, sess *importSession) error {
				books, err := ctx.newLibrary(cmd, sess).ListBooks(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(books) == 0 {
					fmt.Fprintln(out, "No books yet.")
					return nil
				}
				rows := make([][]string, 0, len(books))
				for i, book := range books {
					pages := ""
					if book.PageCount > 0 {
						pages = strconv.Itoa(book.PageCount)
					}
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						book.Title,
						strings.Join(book.Authors, ", "),
						pages,
						book.URI,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{indexColumn, {Title: "Title", Width: 60}, {Title: "Authors", Width: 40}, {Title: "Pages", Numeric: true}, uriColumn},
					rows, "book"))
				return nil
			})
		},
	}
}
