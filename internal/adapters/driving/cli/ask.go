package cli

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

var interactive bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your email",
	Long: `Answers a question using the ingested email collection as context.
With --interactive, starts a conversation that keeps context across
follow-up questions. Type "exit" or press Ctrl-D to leave.`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "start an interactive conversation")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if assistant == nil {
		return errors.New("assistant service not configured")
	}

	ctx := context.Background()

	if !interactive {
		if len(args) == 0 {
			return errors.New("provide a question, or use --interactive")
		}
		question := strings.Join(args, " ")
		reply, _ := assistant.Ask(ctx, question, nil)
		cmd.Println(reply)
		return nil
	}

	return runConversation(ctx, cmd, args)
}

// runConversation loops reading questions, threading history through each
// turn so follow-ups stay in context.
func runConversation(ctx context.Context, cmd *cobra.Command, args []string) error {
	var history []domain.ChatMessage

	if len(args) > 0 {
		question := strings.Join(args, " ")
		var reply string
		reply, history = assistant.Ask(ctx, question, history)
		cmd.Println(reply)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		cmd.Print("\n> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		var reply string
		reply, history = assistant.Ask(ctx, question, history)
		cmd.Println(reply)
	}
}
