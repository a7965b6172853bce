package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/todo-progress/internal/client"
)

func newWatchCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "watch <todo-id>",
		Short: "Follow the progress stream of a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			c := client.New(addr, nil)
			var failure string
			err := c.Stream(cmd.Context(), args[0], func(f client.Frame) error {
				if f.Event == client.EventError {
					failure = f.Error
					_, werr := fmt.Fprintf(out, "%s id=%d error=%q\n", f.Event, f.ID, f.Error)
					return werr
				}
				_, werr := fmt.Fprintf(out, "%s id=%d progress=%d%%\n", f.Event, f.ID, f.Progress)
				return werr
			})
			switch {
			case errors.Is(err, client.ErrNotFound):
				return fmt.Errorf("todo %q: %w", args[0], err)
			case err != nil:
				return err
			case failure != "":
				return fmt.Errorf("stream for todo %q failed: %s", args[0], failure)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the todo server")
	return cmd
}
