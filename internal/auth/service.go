package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/livelihood-backend/internal/audit"
	"github.com/angelmondragon/livelihood-backend/internal/notifications"
	"github.com/angelmondragon/livelihood-backend/internal/users"
	pkgAuth "github.com/angelmondragon/livelihood-backend/pkg/auth"
	"github.com/angelmondragon/livelihood-backend/pkg/auth/session"
	"github.com/angelmondragon/livelihood-backend/pkg/config"
	"github.com/angelmondragon/livelihood-backend/pkg/db"
	"github.com/angelmondragon/livelihood-backend/pkg/db/models"
	"github.com/angelmondragon/livelihood-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livelihood-backend/pkg/errors"
	"github.com/angelmondragon/livelihood-backend/pkg/metrics"
	"github.com/angelmondragon/livelihood-backend/pkg/phone"
	"github.com/angelmondragon/livelihood-backend/pkg/security"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	invalidCredentialsMessage = "invalid credentials"

	ReasonInvalidCredentials = "InvalidCredentials"
	ReasonInactiveAccount    = "InactiveAccount"
	ReasonTokenInvalid       = "TokenInvalid"
	ReasonWeakPassword       = "WeakPassword"
	ReasonInvalidPhoneFormat = "InvalidPhoneFormat"
	ReasonIncorrectPassword  = "IncorrectPassword"
	ReasonPasswordUnchanged  = "PasswordUnchanged"

	unusablePasswordLength = 48
)

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
	FederatedLogin(ctx context.Context, req FederatedLoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error)
	Logout(ctx context.Context, accessID string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByFederatedSubject(ctx context.Context, subject string) (*models.User, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

type notifier interface {
	Send(ctx context.Context, msg notifications.Message)
}

// ServiceParams bundles the dependencies required to build an auth service.
// Verifier, Notifier and Metrics are optional.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Verifier       IdentityVerifier
	Audit          auditRecorder
	Notifier       notifier
	Metrics        metrics.TransitionObserver
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
}

type service struct {
	users    userRepository
	session  sessionManager
	verifier IdentityVerifier
	audit    auditRecorder
	notifier notifier
	metrics  metrics.TransitionObserver
	jwtCfg   config.JWTConfig
	passCfg  config.PasswordConfig
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	return &service{
		users:    params.UserRepo,
		session:  params.SessionManager,
		verifier: params.Verifier,
		audit:    params.Audit,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		jwtCfg:   params.JWTConfig,
		passCfg:  params.PasswordConfig,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	s.observe("login", err)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user, "password login")
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	user, err := s.register(ctx, req)
	s.observe("register", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(user.ID),
		Action:       enums.AuditUserRegistered,
		ResourceType: enums.AuditResourceUser,
		ResourceID:   audit.Ptr(user.ID),
		NewValues:    audit.Snapshot(users.FromModel(user)),
		Description:  "self registration",
	})
	s.notify(ctx, notifications.Welcome(user.ID, user.FirstName))
	return users.FromModel(user), nil
}

func (s *service) register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := users.NormalizeEmail(req.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid email address")
	}
	firstName, lastName := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if firstName == "" || lastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	}
	if problems := security.ValidatePasswordStrength(req.Password); len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password does not meet requirements").
			WithReason(ReasonWeakPassword).
			WithDetails(map[string]any{"password": problems})
	}
	phoneNumber, err := phone.NormalizeOptional(req.Phone)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone must be a valid philippine mobile number").
			WithReason(ReasonInvalidPhoneFormat)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	active := true
	user, err := s.users.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		MiddleName:   trimmedOrNil(req.MiddleName),
		Phone:        phoneNumber,
		Address:      trimmedOrNil(req.Address),
		Role:         enums.RoleBeneficiary,
		IsActive:     &active,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

func (s *service) FederatedLogin(ctx context.Context, req FederatedLoginRequest) (*LoginResponse, error) {
	user, created, err := s.resolveFederated(ctx, req.IDToken)
	s.observe("federated_login", err)
	if err != nil {
		return nil, err
	}

	if created {
		s.audit.Record(ctx, audit.Entry{
			ActorID:      audit.Ptr(user.ID),
			Action:       enums.AuditUserRegistered,
			ResourceType: enums.AuditResourceUser,
			ResourceID:   audit.Ptr(user.ID),
			NewValues:    audit.Snapshot(users.FromModel(user)),
			Description:  "federated first login",
		})
		s.notify(ctx, notifications.Welcome(user.ID, user.FirstName))
	}
	return s.startSession(ctx, user, "federated login")
}

func (s *service) resolveFederated(ctx context.Context, assertion string) (*models.User, bool, error) {
	if s.verifier == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeDependency, "federated login is not configured")
	}
	identity, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "identity assertion rejected").
			WithReason(ReasonTokenInvalid)
	}

	user, err := s.users.FindByFederatedSubject(ctx, identity.Subject)
	if err == nil {
		return user, false, activeOrError(user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup federated subject")
	}

	email := users.NormalizeEmail(identity.Email)
	user, err = s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !identity.EmailVerified {
			return nil, false, pkgerrors.New(pkgerrors.CodeUnauthorized, "federated email is not verified").
				WithReason(ReasonTokenInvalid)
		}
		if err := activeOrError(user); err != nil {
			return nil, false, err
		}
		subject, provider := identity.Subject, identity.Provider
		if err := s.users.UpdateFields(ctx, user.ID, map[string]any{
			"federated_subject": subject,
			"oauth_provider_id": provider,
			"is_verified":       true,
		}); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link federated identity")
		}
		user.FederatedSubject, user.OAuthProviderID, user.IsVerified = &subject, &provider, true
		return user, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	unusable, err := security.GenerateTempPassword(unusablePasswordLength)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
	}
	hash, err := security.HashPassword(unusable, s.passCfg)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	firstName, lastName := identity.GivenName, identity.FamilyName
	if firstName == "" {
		firstName, _, _ = strings.Cut(email, "@")
	}
	subject := identity.Subject
	active := true
	user, err = s.users.Create(ctx, users.CreateUserDTO{
		Email:            email,
		PasswordHash:     hash,
		FirstName:        firstName,
		LastName:         lastName,
		Role:             enums.RoleBeneficiary,
		IsVerified:       true,
		FederatedSubject: &subject,
		IsActive:         &active,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, false, pkgerrors.New(pkgerrors.CodeConflict, "account already exists")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create federated user")
	}
	provider := identity.Provider
	if err := s.users.UpdateFields(ctx, user.ID, map[string]any{"oauth_provider_id": provider}); err == nil {
		user.OAuthProviderID = &provider
	}
	return user, true, nil
}

func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error) {
	resp, err := s.refresh(ctx, req)
	s.observe("refresh", err)
	return resp, err
}

func (s *service) refresh(ctx context.Context, req RefreshRequest) (*LoginResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, tokenInvalid(err)
	}
	rotation, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, tokenInvalid(err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	if rotation.UserID != claims.UserID {
		_ = s.session.Revoke(ctx, rotation.AccessID)
		return nil, tokenInvalid(errors.New("session bound to another user"))
	}

	user, err := s.users.FindByID(ctx, rotation.UserID)
	if err != nil {
		_ = s.session.Revoke(ctx, rotation.AccessID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tokenInvalid(err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if err := activeOrError(user); err != nil {
		_ = s.session.Revoke(ctx, rotation.AccessID)
		return nil, err
	}

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    rotation.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return s.response(accessToken, rotation.RefreshToken, user), nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session").WithReason(ReasonTokenInvalid)
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// ChangePassword replaces the caller's password and closes every session they
// hold, the current one included.
func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	err := s.changePassword(ctx, userID, req)
	s.observe("change_password", err)
	if err != nil {
		return err
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(userID),
		Action:       enums.AuditUserPasswordChanged,
		ResourceType: enums.AuditResourceUser,
		ResourceID:   audit.Ptr(userID),
		Description:  "password changed, sessions revoked",
	})
	return nil
}

func (s *service) changePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tokenInvalid(err)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if err := activeOrError(user); err != nil {
		return err
	}

	valid, err := security.VerifyPassword(req.CurrentPassword, user.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrInvalidHash) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeValidation, "current password is incorrect").WithReason(ReasonIncorrectPassword)
	}
	if req.NewPassword == req.CurrentPassword {
		return pkgerrors.New(pkgerrors.CodeValidation, "new password must differ from the current one").
			WithReason(ReasonPasswordUnchanged)
	}
	if problems := security.ValidatePasswordStrength(req.NewPassword); len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "password does not meet requirements").
			WithReason(ReasonWeakPassword).
			WithDetails(map[string]any{"password": problems})
	}

	hash, err := security.HashPassword(req.NewPassword, s.passCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdateFields(ctx, user.ID, map[string]any{"password_hash": hash}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	if err := s.session.RevokeAll(ctx, user.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke sessions")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := users.NormalizeEmail(email)
	if input == "" || password == "" {
		return nil, invalidCredentials()
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		if errors.Is(err, security.ErrInvalidHash) {
			return nil, invalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, invalidCredentials()
	}
	if err := activeOrError(user); err != nil {
		return nil, err
	}
	s.upgradeHash(ctx, user, password)
	return user, nil
}

// upgradeHash re-derives the stored hash when the argon2 costs changed.
// Failures leave the old hash in place; the next login tries again.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if !security.NeedsRehash(user.PasswordHash, s.passCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.passCfg)
	if err != nil {
		return
	}
	if err := s.users.UpdateFields(ctx, user.ID, map[string]any{"password_hash": hash}); err == nil {
		user.PasswordHash = hash
	}
}

// startSession records the login and issues a fresh token pair.
func (s *service) startSession(ctx context.Context, user *models.User, description string) (*LoginResponse, error) {
	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	user.LastLoginAt = &now

	accessID := session.NewAccessID()
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}

	s.audit.Record(ctx, audit.Entry{
		ActorID:      audit.Ptr(user.ID),
		Action:       enums.AuditUserLoginSuccess,
		ResourceType: enums.AuditResourceUser,
		ResourceID:   audit.Ptr(user.ID),
		Description:  description,
	})
	return s.response(accessToken, refreshToken, user), nil
}

func (s *service) response(accessToken, refreshToken string, user *models.User) *LoginResponse {
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.jwtCfg.AccessTokenTTL().Seconds()),
		User:         users.FromModel(user),
	}
}

func (s *service) notify(ctx context.Context, msg notifications.Message) {
	if s.notifier != nil {
		s.notifier.Send(ctx, msg)
	}
}

func (s *service) observe(action string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition("session", action, metrics.OutcomeFor(err))
	}
}

func activeOrError(user *models.User) error {
	if user.IsActive && !user.IsDeleted {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "account is inactive").WithReason(ReasonInactiveAccount)
}

func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage).WithReason(ReasonInvalidCredentials)
}

func tokenInvalid(cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, "invalid or expired token").WithReason(ReasonTokenInvalid)
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
