package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PollyDrive/estate/internal/feedback"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Run the feedback bot collecting reactions on sent listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		token := os.Getenv("TELEGRAM_BOT_TOKEN")
		if token == "" {
			return errors.New("TELEGRAM_BOT_TOKEN is not set")
		}
		bot, err := feedback.NewBot(token, a.store, a.logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return bot.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(feedbackCmd)
}
