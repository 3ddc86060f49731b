/*
Package cli provides command-line utilities shared by the permafrost command.

Output Formatting:

Commands that report state support text and JSON output:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, data); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Pass ctx to operations that should stop on shutdown.

Errors:

ConfigError and CommandError wrap failures so the root command prints a
uniform message.
*/
package cli
