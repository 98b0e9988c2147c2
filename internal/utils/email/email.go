package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/brokerage-service/internal/config"
	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
	"github.com/Dan9191/brokerage-service/internal/systematic"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	users  repository.UserStore
	logger *logrus.Logger
	send   func(e *email.Email) error
}

var _ systematic.Notifier = (*Sender)(nil)

// NewSender creates a new email sender
func NewSender(cfg *config.Config, users repository.UserStore, logger *logrus.Logger) *Sender {
	s := &Sender{
		cfg:    cfg,
		users:  users,
		logger: logger,
	}
	s.send = s.sendSMTP
	return s
}

// NotifyExecution emails the plan owner the outcome of an installment
func (s *Sender) NotifyExecution(ctx context.Context, plan models.ScheduledPlan, result systematic.ExecutionResult) error {
	user, err := s.users.FindUserByID(ctx, plan.UserID)
	if err != nil {
		return fmt.Errorf("failed to find plan owner %d: %w", plan.UserID, err)
	}
	if user.Email == "" {
		s.logger.Debugf("User %d has no email, skipping notification", user.ID)
		return nil
	}

	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{user.Email}
	e.Subject = executionSubject(plan, result)
	e.Text = []byte(executionBody(user, plan, result))

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", user.Email, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", user.Email, e.Subject)
	return nil
}

func (s *Sender) sendSMTP(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	return e.Send(addr, auth)
}

func planLabel(t models.PlanType) string {
	switch t {
	case models.PlanTypeSIP:
		return "Systematic Investment Plan"
	case models.PlanTypeSWP:
		return "Systematic Withdrawal Plan"
	case models.PlanTypeSTP:
		return "Systematic Transfer Plan"
	}
	return string(t)
}

func executionSubject(plan models.ScheduledPlan, result systematic.ExecutionResult) string {
	if result.Status == models.ExecutionSuccess {
		return fmt.Sprintf("%s installment processed", plan.Type)
	}
	return fmt.Sprintf("%s installment failed", plan.Type)
}

func fundName(id, name string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}

func executionBody(user *models.User, plan models.ScheduledPlan, result systematic.ExecutionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", user.Username)

	if result.Status == models.ExecutionSuccess {
		fmt.Fprintf(&b, "Your %s installment of %s INR in %s has been processed.\n",
			planLabel(plan.Type), plan.Amount.StringFixed(2), fundName(plan.FundID, plan.FundName))
		if plan.Type == models.PlanTypeSTP {
			fmt.Fprintf(&b, "Transferred into: %s\n", fundName(plan.TargetFundID, plan.TargetFundName))
		}
		fmt.Fprintf(&b, "Units: %s\nNAV: %s\n", result.Units.String(), result.Price.String())
		if plan.Type != models.PlanTypeSTP {
			fmt.Fprintf(&b, "Available balance: %s INR\n", result.BalanceAfter.StringFixed(2))
		}
		if result.NextExecutionDate != nil {
			fmt.Fprintf(&b, "Next installment: %s\n", result.NextExecutionDate.Format(time.DateOnly))
		}
	} else {
		fmt.Fprintf(&b, "Your %s installment of %s INR in %s could not be processed.\n",
			planLabel(plan.Type), plan.Amount.StringFixed(2), fundName(plan.FundID, plan.FundName))
		fmt.Fprintf(&b, "Reason: %s\n", result.Message)
		b.WriteString("The installment will be retried on the next run.\n")
	}

	b.WriteString("\nBest regards,\nBrokerage Service")
	return b.String()
}
