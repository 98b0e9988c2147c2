package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/brokerage-service/internal/config"
	"github.com/Dan9191/brokerage-service/internal/models"
	"github.com/Dan9191/brokerage-service/internal/repository"
	"github.com/Dan9191/brokerage-service/internal/systematic"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	tokenTTL            = 24 * time.Hour
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Executor runs every plan due on a date
type Executor interface {
	ExecuteDuePlans(ctx context.Context, targetDate time.Time) (systematic.RunSummary, error)
}

// Service handles the admin operations on systematic plans
type Service struct {
	engine Executor
	plans  repository.PlanStore
	logs   repository.ExecutionLogStore
	log    *logrus.Logger
	config *config.Config
	now    func() time.Time
}

// NewService initializes a new service
func NewService(engine Executor, plans repository.PlanStore, logs repository.ExecutionLogStore, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{
		engine: engine,
		plans:  plans,
		logs:   logs,
		log:    log,
		config: cfg,
		now:    time.Now,
	}
}

// Login authenticates the administrator and returns a JWT token
func (s *Service) Login(username, password string) (string, error) {
	if s.config.AdminPasswordHash == "" || username != s.config.AdminUsername {
		return "", ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(s.now().Add(tokenTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("Admin logged in: %s", username)
	return tokenString, nil
}

// TriggerRun executes the plans due on date. A zero date means today in
// the configured time zone. The run outlives ctx so a dropped request does
// not abort installments midway.
func (s *Service) TriggerRun(ctx context.Context, date time.Time) (systematic.RunSummary, error) {
	if date.IsZero() {
		date = s.now().In(s.config.Location())
	}
	s.log.Infof("Running plans due on %s", date.Format(time.DateOnly))
	return s.engine.ExecuteDuePlans(context.WithoutCancel(ctx), date)
}

// PlanHistory returns the execution log of one plan, newest first
func (s *Service) PlanHistory(ctx context.Context, planID int64, limit int) ([]models.ExecutionLog, error) {
	if _, err := s.plans.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.logs.ListExecutionLogs(ctx, planID, clampLimit(limit))
}

// RecentExecutions returns the latest execution log entries across plans
func (s *Service) RecentExecutions(ctx context.Context, limit int) ([]models.ExecutionLog, error) {
	return s.logs.ListRecentExecutionLogs(ctx, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultHistoryLimit
	case limit > maxHistoryLimit:
		return maxHistoryLimit
	}
	return limit
}
