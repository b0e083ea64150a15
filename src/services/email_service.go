// backend/src/services/email_service.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/pinigine/backend/src/config"
	"github.com/username/pinigine/backend/src/logger"
)

type EmailService interface {
	SendVerificationEmail(toEmail, username, token string) error
	SendPasswordResetEmail(toEmail, username, token string) error
}

func NewEmailService() EmailService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{
				VerificationEmailBaseURL: config.Cfg.VerificationEmailBaseURL,
				PasswordResetBaseURL:     config.Cfg.PasswordResetBaseURL,
			}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:                       mg,
			senderEmail:              config.Cfg.SenderEmail,
			senderName:               config.Cfg.SenderName,
			verificationEmailBaseURL: config.Cfg.VerificationEmailBaseURL,
			passwordResetBaseURL:     config.Cfg.PasswordResetBaseURL,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{
				VerificationEmailBaseURL: config.Cfg.VerificationEmailBaseURL,
				PasswordResetBaseURL:     config.Cfg.PasswordResetBaseURL,
			}
		}
		return &SMTPEmailService{
			SMTPServer:               config.Cfg.SMTPServer,
			SMTPPort:                 config.Cfg.SMTPPort,
			SMTPUser:                 config.Cfg.SMTPUser,
			SMTPPassword:             config.Cfg.SMTPPassword,
			SenderEmail:              config.Cfg.SenderEmail,
			VerificationEmailBaseURL: config.Cfg.VerificationEmailBaseURL,
			PasswordResetBaseURL:     config.Cfg.PasswordResetBaseURL,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{
			VerificationEmailBaseURL: config.Cfg.VerificationEmailBaseURL,
			PasswordResetBaseURL:     config.Cfg.PasswordResetBaseURL,
		}
	}
}

type MailgunEmailService struct {
	mg                       *mailgun.MailgunImpl
	senderEmail              string
	senderName               string
	verificationEmailBaseURL string
	passwordResetBaseURL     string
}

func (s *MailgunEmailService) send(subject, body, toEmail string) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	message := mailgun.NewMessage(from, subject, body, toEmail)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send email via Mailgun", "error", err, "to", toEmail)
		return fmt.Errorf("failed to send email via Mailgun: %w", err)
	}
	logger.L.Info("Email sent via Mailgun", "to", toEmail, "messageID", id)
	return nil
}

func (s *MailgunEmailService) SendVerificationEmail(toEmail, username, token string) error {
	verificationLink := fmt.Sprintf("%s?token=%s", s.verificationEmailBaseURL, token)
	body := fmt.Sprintf("Hi %s,\n\nPlease verify your email by clicking this link: %s\n\nThanks,\nThe Pinigine Team", username, verificationLink)
	return s.send("Verify Your Email Address for Pinigine", body, toEmail)
}

func (s *MailgunEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	resetLink := fmt.Sprintf("%s?token=%s", s.passwordResetBaseURL, token)
	body := fmt.Sprintf("Hi %s,\n\nA password reset was requested for your account. Click this link to choose a new password: %s\n\nIf you did not request this, you can ignore this email.\n\nThanks,\nThe Pinigine Team", username, resetLink)
	return s.send("Password Reset Request for Pinigine", body, toEmail)
}

type SMTPEmailService struct {
	SMTPServer               string
	SMTPPort                 int
	SMTPUser                 string
	SMTPPassword             string
	SenderEmail              string
	VerificationEmailBaseURL string
	PasswordResetBaseURL     string
}

func (s *SMTPEmailService) send(subject, body, toEmail string) error {
	header := make(map[string]string)
	header["From"] = s.SenderEmail
	header["To"] = toEmail
	header["Subject"] = subject
	header["MIME-version"] = "1.0"
	header["Content-Type"] = "text/plain; charset=\"UTF-8\""
	message := ""
	for k, v := range header {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + body

	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	if err := smtp.SendMail(addr, auth, s.SenderEmail, []string{toEmail}, []byte(message)); err != nil {
		logger.L.Error("Failed to send email via SMTP", "error", err, "to", toEmail)
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	logger.L.Info("Email sent via SMTP", "to", toEmail)
	return nil
}

func (s *SMTPEmailService) SendVerificationEmail(toEmail, username, token string) error {
	verificationLink := fmt.Sprintf("%s?token=%s", s.VerificationEmailBaseURL, token)
	body := fmt.Sprintf("Hi %s,\n\nPlease verify your email by clicking this link: %s\n\nThanks,\nThe Pinigine Team (via SMTP)", username, verificationLink)
	return s.send("Verify Your Email Address for Pinigine (SMTP)", body, toEmail)
}

func (s *SMTPEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	resetLink := fmt.Sprintf("%s?token=%s", s.PasswordResetBaseURL, token)
	body := fmt.Sprintf("Hi %s,\n\nClick this link to choose a new password: %s\n\nThanks,\nThe Pinigine Team (via SMTP)", username, resetLink)
	return s.send("Password Reset Request for Pinigine (SMTP)", body, toEmail)
}

// MockEmailService logs instead of sending. Used in development and tests.
type MockEmailService struct {
	VerificationEmailBaseURL string
	PasswordResetBaseURL     string
}

func (s *MockEmailService) SendVerificationEmail(toEmail, username, token string) error {
	link := fmt.Sprintf("%s?token=%s", s.VerificationEmailBaseURL, token)
	if logger.L != nil {
		logger.L.Info("MOCK verification email", "to", toEmail, "username", username, "link", link)
	}
	return nil
}

func (s *MockEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	link := fmt.Sprintf("%s?token=%s", s.PasswordResetBaseURL, token)
	if logger.L != nil {
		logger.L.Info("MOCK password reset email", "to", toEmail, "username", username, "link", link)
	}
	return nil
}
