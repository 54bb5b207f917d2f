package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"

	"codebot/internal/config"
	"codebot/internal/models"
	"codebot/internal/observability"
	contextutils "codebot/internal/utils"
)

const userSelectFields = "id, username, email, password_hash, preferred_track, last_active, created_at, updated_at"

// UserServiceInterface defines user account operations
type UserServiceInterface interface {
	CreateUserWithPassword(ctx context.Context, username, email, password string) (*models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePreferredTrack(ctx context.Context, userID int, track models.Track) error
	UpdateLastActive(ctx context.Context, userID int) error
	EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) error
	DeleteUser(ctx context.Context, userID int) error
}

// UserService handles user accounts backed by Postgres
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewUserServiceWithLogger creates a new UserService instance with logger
func NewUserServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *UserService {
	return &UserService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *UserService) scanUserFromRow(row *sql.Row) (result0 *models.User, err error) {
	user := &models.User{}
	err = row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.PreferredTrack, &user.LastActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// getUserByQuery is a shared method for getting a user by any query
func (s *UserService) getUserByQuery(ctx context.Context, query string, args ...interface{}) (result0 *models.User, err error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var user *models.User
	user, err = s.scanUserFromRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found is not an error here
		}
		return nil, err
	}
	return user, nil
}

// CreateUserWithPassword creates a new user with password authentication
func (s *UserService) CreateUserWithPassword(ctx context.Context, username, email, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user_with_password", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(username) == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "username cannot be empty")
	}

	if s.cfg.IsSignupDisabled() && !s.cfg.IsEmailAllowed(email) {
		return nil, contextutils.WrapError(contextutils.ErrForbidden, "signups are currently disabled")
	}

	var hashedPassword []byte
	hashedPassword, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO users (username, email, password_hash, last_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	now := time.Now()
	var id int
	err = s.db.QueryRowContext(ctx, query, username, email, string(hashedPassword), now, now, now).Scan(&id)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, contextutils.ErrRecordExists
		}
		return nil, err
	}

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseQuery, "user was created but could not be retrieved from database")
	}
	return user, nil
}

// AuthenticateUser verifies user credentials and returns the user if valid
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	var user *models.User
	user, err = s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, "user not found")
	}

	if !user.PasswordHash.Valid {
		return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, "user has no password set")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password))
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidCredentials, "invalid password")
	}

	return user, nil
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userSelectFields)
	return s.getUserByQuery(ctx, query, id)
}

// GetUserByUsername retrieves a user by their username
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_username", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)
	query := fmt.Sprintf("SELECT %s FROM users WHERE username = $1", userSelectFields)
	return s.getUserByQuery(ctx, query, username)
}

// GetUserByEmail retrieves a user by their email address
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_email")
	defer observability.FinishSpan(span, &err)
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userSelectFields)
	return s.getUserByQuery(ctx, query, email)
}

// UpdatePreferredTrack stores the track the user last worked in
func (s *UserService) UpdatePreferredTrack(ctx context.Context, userID int, track models.Track) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_preferred_track",
		observability.AttributeUserID(userID),
		observability.AttributeTrack(string(track)),
	)
	defer observability.FinishSpan(span, &err)

	if !models.IsKnownTrack(string(track)) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidTrack, "unknown track %q", track)
	}

	query := `UPDATE users SET preferred_track = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, string(track), time.Now(), userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update preferred track")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check update result")
	}
	if rows == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// UpdateLastActive refreshes the user's last activity timestamp
func (s *UserService) UpdateLastActive(ctx context.Context, userID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_last_active", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	query := `UPDATE users SET last_active = $1 WHERE id = $2`
	_, err = s.db.ExecContext(ctx, query, time.Now(), userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update last active")
	}
	return nil
}

// EnsureAdminUserExists creates the admin account on first boot and keeps
// its password in sync with configuration
func (s *UserService) EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_admin_user", attribute.String("user.username", adminUsername))
	defer observability.FinishSpan(span, &err)

	if adminUsername == "" || adminPassword == "" {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "admin username and password are required")
	}

	existing, err := s.GetUserByUsername(ctx, adminUsername)
	if err != nil {
		return err
	}

	if existing != nil {
		if existing.PasswordHash.Valid {
			if bcrypt.CompareHashAndPassword([]byte(existing.PasswordHash.String), []byte(adminPassword)) == nil {
				return nil
			}
		}
		var hashedPassword []byte
		hashedPassword, err = bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
		_, err = s.db.ExecContext(ctx, query, string(hashedPassword), time.Now(), existing.ID)
		if err != nil {
			return contextutils.WrapError(err, "failed to update admin password")
		}
		s.logger.Info(ctx, "Admin password updated from configuration", map[string]interface{}{
			"user_id": existing.ID,
		})
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now()
	query := `INSERT INTO users (username, password_hash, last_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = s.db.ExecContext(ctx, query, adminUsername, string(hashedPassword), now, now, now)
	if err != nil {
		return contextutils.WrapError(err, "failed to create admin user")
	}
	s.logger.Info(ctx, "Admin user created", map[string]interface{}{
		"username": adminUsername,
	})
	return nil
}

// GetAllUsers lists every account, used by the admin CLI
func (s *UserService) GetAllUsers(ctx context.Context) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_all_users")
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + userSelectFields + ` FROM users ORDER BY username`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query users")
	}
	defer func() { _ = rows.Close() }()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err = rows.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.PreferredTrack, &user.LastActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan user")
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate users")
	}
	return users, nil
}

// UpdateUserPassword replaces a user's password hash
func (s *UserService) UpdateUserPassword(ctx context.Context, userID int, newPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_user_password", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if newPassword == "" {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "password cannot be empty")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash password")
	}

	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		string(hashedPassword), time.Now(), userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update password")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check update result")
	}
	if rows == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// DeleteUser removes a user and, through cascading constraints, their
// submissions and chat histories
func (s *UserService) DeleteUser(ctx context.Context, userID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "delete_user", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete user")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check delete result")
	}
	if rows == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// GetDB returns the underlying database connection
func (s *UserService) GetDB() *sql.DB {
	return s.db
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	// PostgreSQL error code 23505 is a unique constraint violation
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" {
			return true
		}
	}

	return false
}
