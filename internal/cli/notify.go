package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/PollyDrive/estate/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send matched listings to their profile chats",
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
		sender, err := notifier.NewTelegramSender(token, a.logger)
		if err != nil {
			return err
		}

		gate := notifier.New(a.store, sender, a.profiles, a.cfg.Telegram, a.logger)
		s, err := gate.Run(cmd.Context())
		if s.Skipped {
			cmd.Println("quiet hours, nothing sent")
			return nil
		}
		cmd.Printf("sent=%d blocked=%d errors=%d\n", s.Sent, s.Blocked, s.Errors)
		return err
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
