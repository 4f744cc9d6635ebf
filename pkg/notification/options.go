package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithEmailVerificationTemplate registers the email verification code template
func WithEmailVerificationTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(EmailVerificationNotice, EmailSystem, NoticeTemplate{
			Subject: "Verify Your Email Address",
			Html:    loadTemplate("templates/email/verification_code.html"),
		})
	}
}

// WithPasswordResetTemplate registers the password reset code template
func WithPasswordResetTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(PasswordResetNotice, EmailSystem, NoticeTemplate{
			Subject: "Password Reset Code",
			Html:    loadTemplate("templates/email/password_reset_code.html"),
		})
	}
}

// WithLoginCodeTemplate registers the login verification code template
func WithLoginCodeTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(LoginCodeNotice, EmailSystem, NoticeTemplate{
			Subject: "Your Login Code",
			Html:    loadTemplate("templates/email/login_code.html"),
		})
	}
}

// WithDefaultTemplates registers all built-in notice templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		options := []NotificationManagerOption{
			WithEmailVerificationTemplate(),
			WithPasswordResetTemplate(),
			WithLoginCodeTemplate(),
		}
		for _, opt := range options {
			if err := opt(nm); err != nil {
				return err
			}
		}
		return nil
	}
}
