package entrypoint

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"siteclone/internal/cli"
)

// Execute runs the command line in args (args[0] is the program name) and
// returns the process exit code.
func Execute(args []string) (int, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(os.Stdout, os.Stderr, os.LookupEnv)
	root.SetArgs(args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		return cli.ExitCode(err), err
	}
	return 0, nil
}
