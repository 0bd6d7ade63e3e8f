package services

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	apperrors "fintrack/internal/errors"
	"fintrack/internal/models"
	"fintrack/internal/money"
	"fintrack/internal/store"
)

// userService handles user-related business logic.
type userService struct {
	ledger *store.Ledger
}

// NewUserService creates a new UserServicer.
func NewUserService(ledger *store.Ledger) UserServicer {
	return &userService{ledger: ledger}
}

// CreateUser registers a new user with default preferences.
func (s *userService) CreateUser(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "email and password are required")
	}

	count, err := s.ledger.Users.Count(ctx, store.Eq("email", email))
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	user := &models.User{
		Email:              email,
		Password:           string(hashedPassword),
		Name:               strings.TrimSpace(name),
		CurrencyFormat:     models.DefaultCurrencyFormat(),
		EmailNotifications: true,
		BillReminders:      true,
		BudgetAlerts:       true,
		Theme:              models.ThemeSystem,
	}

	if err := s.ledger.Users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration for the same email.
		if errors.Is(err, apperrors.ErrConstraintViolation) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email
func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.ledger.Users.FindFirst(ctx, store.Eq("email", strings.ToLower(strings.TrimSpace(email))))
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.ledger.Users.FindUnique(ctx, id)
}

// VerifyPassword checks if the provided password matches the stored hash
func (s *userService) VerifyPassword(user *models.User, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password))
	return err == nil
}

// AttemptLogin returns the user for valid credentials. Unknown emails and
// wrong passwords produce the same error.
func (s *userService) AttemptLogin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.VerifyPassword(user, password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	return user, nil
}

// UpdatePreferences changes a user's display, currency and notification settings.
func (s *userService) UpdatePreferences(ctx context.Context, userID string, update PreferencesUpdate) (*models.User, error) {
	fields := make(map[string]any)
	if update.Name != nil {
		fields["name"] = strings.TrimSpace(*update.Name)
	}
	if update.CurrencyCode != nil {
		code := strings.ToUpper(*update.CurrencyCode)
		fields["currency_code"] = code
		// Switching currency without a precision adopts the currency's own.
		if places, ok := money.DecimalPlaces(code); ok && update.DecimalPlaces == nil {
			fields["decimal_places"] = places
		}
	}
	if update.CurrencySymbol != nil {
		fields["currency_symbol"] = *update.CurrencySymbol
	}
	if update.SymbolPosition != nil {
		fields["symbol_position"] = *update.SymbolPosition
	}
	if update.DecimalPlaces != nil {
		if *update.DecimalPlaces < 0 || *update.DecimalPlaces > 4 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "decimal places must be between 0 and 4")
		}
		fields["decimal_places"] = *update.DecimalPlaces
	}
	if update.DecimalSeparator != nil {
		fields["decimal_separator"] = *update.DecimalSeparator
	}
	if update.ThousandsSeparator != nil {
		fields["thousands_separator"] = *update.ThousandsSeparator
	}
	if update.RoundingMode != nil {
		fields["rounding_mode"] = *update.RoundingMode
	}
	if update.EmailNotifications != nil {
		fields["email_notifications"] = *update.EmailNotifications
	}
	if update.BillReminders != nil {
		fields["bill_reminders"] = *update.BillReminders
	}
	if update.BudgetAlerts != nil {
		fields["budget_alerts"] = *update.BudgetAlerts
	}
	if update.Theme != nil {
		fields["theme"] = *update.Theme
	}

	return s.ledger.Users.Update(ctx, userID, fields)
}

// DeleteUser removes a user and everything the user owns.
func (s *userService) DeleteUser(ctx context.Context, userID string) error {
	return s.ledger.Users.Delete(ctx, userID)
}
