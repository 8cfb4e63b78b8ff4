package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// InteractiveCmd creates the interactive command
func InteractiveCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run multiple commands)",
		Long: `Start an interactive session where you can run multiple commands against one store connection.
The session will keep running until you type 'exit' or 'quit'.

Type 'help' to see available commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("\n🚀 Starting interactive session...")
			fmt.Println("Type 'help' for available commands, 'exit' or 'quit' to leave")

			// Get all sibling commands (excluding interactive itself)
			commands := make(map[string]*cobra.Command)
			for _, subCmd := range cmd.Parent().Commands() {
				switch subCmd.Name() {
				case "interactive", "completion", "help", "serve":
					continue
				}
				commands[subCmd.Name()] = subCmd
			}

			return runSession(os.Stdin, commands)
		},
	}

	return cmd
}

func runSession(in io.Reader, commands map[string]*cobra.Command) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Print("> ")

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Parse command (respecting quotes)
		parts, err := parseCommandLine(line)
		if err != nil {
			fmt.Printf("❌ Error parsing command: %v\n\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}
		cmdName := parts[0]
		cmdArgs := parts[1:]

		if cmdName == "exit" || cmdName == "quit" {
			fmt.Println("👋 Goodbye!")
			return nil
		}

		if cmdName == "help" {
			printInteractiveHelp(commands)
			continue
		}

		targetCmd, exists := commands[cmdName]
		if !exists {
			fmt.Printf("❌ Unknown command: %s (type 'help' for available commands)\n\n", cmdName)
			continue
		}

		if err := runCommand(targetCmd, cmdArgs); err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	return nil
}

// runCommand executes RunE directly, bypassing Execute() so PersistentPreRunE
// does not initialise the app a second time
func runCommand(targetCmd *cobra.Command, cmdArgs []string) error {
	// Reset flags left over from the previous invocation
	targetCmd.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
		_ = flag.Value.Set(flag.DefValue)
	})

	if err := targetCmd.ParseFlags(cmdArgs); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}

	cmdArgs = targetCmd.Flags().Args()
	if targetCmd.Args != nil {
		if err := targetCmd.Args(targetCmd, cmdArgs); err != nil {
			return err
		}
	}

	if targetCmd.RunE != nil {
		return targetCmd.RunE(targetCmd, cmdArgs)
	}
	if targetCmd.Run != nil {
		targetCmd.Run(targetCmd, cmdArgs)
	}
	return nil
}

func printInteractiveHelp(commands map[string]*cobra.Command) {
	fmt.Println("\nAvailable commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd := commands[name]
		fmt.Printf("  %-45s %s\n", cmd.Use, cmd.Short)
	}

	fmt.Println("\n  help                                          Show this help message")
	fmt.Println("  exit, quit                                    Exit the interactive session")
}

// parseCommandLine splits a command line into arguments, respecting quoted strings.
// Supports both single and double quotes.
func parseCommandLine(line string) ([]string, error) {
	var args []string
	var current strings.Builder
	var inQuote rune // 0 if not in quote, '"' or '\'' if in quote
	quoted := false

	for _, r := range line {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			inQuote = r
			quoted = true
		case unicode.IsSpace(r):
			if current.Len() > 0 || quoted {
				args = append(args, current.String())
				current.Reset()
				quoted = false
			}
		default:
			current.WriteRune(r)
		}
	}

	if inQuote != 0 {
		return nil, fmt.Errorf("unclosed quote: %c", inQuote)
	}

	if current.Len() > 0 || quoted {
		args = append(args, current.String())
	}

	return args, nil
}
