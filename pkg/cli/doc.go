/*
Package cli provides command-line utilities shared by the gemproxy
command.

Output Formatting:

Command results can be rendered as plain text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, records); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	sig := <-cli.WaitForShutdown()
*/
package cli
