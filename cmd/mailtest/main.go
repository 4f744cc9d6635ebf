package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tendant/simple-verify/pkg/notification"
	"github.com/tendant/simple-verify/pkg/verification"
)

// Sends a sample verification-code email through the notification stack.
// Useful for checking SMTP settings and template rendering against a local
// mail catcher (e.g. MailHog on port 1025).
func main() {
	host := flag.String("host", "localhost", "SMTP server host")
	port := flag.Int("port", 1025, "SMTP server port")
	username := flag.String("user", "noreply@example.com", "SMTP username")
	password := flag.String("pass", "pwd", "SMTP password")
	from := flag.String("from", "noreply@example.com", "From email address")
	to := flag.String("to", "", "To email address")
	useTLS := flag.Bool("tls", false, "Use TLS")
	flag.Parse()

	if *to == "" {
		fmt.Println("Error: to email address is required")
		os.Exit(1)
	}

	manager, err := notification.NewNotificationManager(
		notification.WithSMTP(notification.SMTPConfig{
			Host:     *host,
			Port:     *port,
			Username: *username,
			Password: *password,
			From:     *from,
			TLS:      *useTLS,
		}),
		notification.WithDefaultTemplates(),
	)
	if err != nil {
		log.Fatalf("Failed to create notification manager: %v", err)
	}

	code, err := verification.GeneratePasscode()
	if err != nil {
		log.Fatalf("Failed to generate passcode: %v", err)
	}

	err = manager.Send(notification.EmailVerificationNotice, notification.NotificationData{
		To: *to,
		Data: map[string]string{
			"Passcode": code,
		},
	})
	if err != nil {
		log.Fatalf("Failed to send email: %v", err)
	}

	fmt.Printf("Verification code email sent to %s (code %s)\n", *to, code)
}
