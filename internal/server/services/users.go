// Package services contains the account use cases: registration, the
// login/refresh/logout session lifecycle, password change and profile
// updates.
package services

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/uhhharsh/VidShare/internal/common"
	"github.com/uhhharsh/VidShare/internal/logging"
	"github.com/uhhharsh/VidShare/internal/server/auth"
	"github.com/uhhharsh/VidShare/internal/server/media"
	"github.com/uhhharsh/VidShare/internal/server/models"
	"github.com/uhhharsh/VidShare/internal/server/repositories/users"
	"github.com/uhhharsh/VidShare/internal/server/sessions"
)

// TokenIssuer mints and verifies session tokens.
type TokenIssuer interface {
	IssueAccess(userID string) (string, error)
	IssueRefresh(userID string) (string, error)
	Verify(token string, kind auth.Kind) (auth.TokenInfo, error)
}

// EventRecorder counts account events by operation and outcome.
type EventRecorder interface {
	AuthEvent(op, outcome string)
}

// TokenPair bundles a short-lived access token and a long-lived refresh
// token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User   models.PublicUser
	Tokens TokenPair
}

type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	// AvatarPath and CoverImagePath are optional local files. They are
	// removed once Register returns.
	AvatarPath     string
	CoverImagePath string
}

// LoginInput identifies the user by username or email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

type AccountDetailsInput struct {
	FullName string
	Email    string
}

// Options tune UserService.
type Options struct {
	BcryptCost   int
	StoreTimeout time.Duration
	// RevokeSessionsOnPasswordChange clears the stored refresh token when
	// the password changes. Off by default.
	RevokeSessionsOnPasswordChange bool
}

// UserService orchestrates the account use cases. Every error it returns
// matches one of the common error kinds.
type UserService struct {
	users    users.Repository
	sessions *sessions.Store
	tokens   TokenIssuer
	uploader media.Uploader
	events   EventRecorder
	log      logging.Logger
	validate *validator.Validate
	opts     Options
}

func NewUserService(repo users.Repository, tokens TokenIssuer, uploader media.Uploader, log logging.Logger, opts Options) *UserService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if log == nil {
		log = logging.Nop()
	}
	return &UserService{
		users:    repo,
		sessions: sessions.NewStore(repo),
		tokens:   tokens,
		uploader: uploader,
		log:      log.With("module", "services.users"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
	}
}

// WithEvents attaches an event recorder.
func (s *UserService) WithEvents(r EventRecorder) *UserService {
	s.events = r
	return s
}

func (s *UserService) record(op string, err error) {
	if s.events == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorInvalidInput):
		outcome = "invalid"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrorNotFound):
		outcome = "rejected"
	case errors.Is(err, common.ErrorConflict):
		outcome = "conflict"
	default:
		outcome = "error"
	}
	s.events.AuthEvent(op, outcome)
}

func (s *UserService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

func normalize(v string) string { return strings.ToLower(strings.TrimSpace(v)) }

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func invalid(msg string) error { return common.NewError(common.ErrorInvalidInput, msg) }

func unauthorized(msg string) error { return common.NewError(common.ErrorUnauthorized, msg) }

func removeTemp(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}

func (s *UserService) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return invalid("email is not valid")
	}
	return nil
}

// Register creates a user. Nothing is stored unless every step succeeds.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (user models.PublicUser, err error) {
	var stored []string
	defer removeTemp(in.AvatarPath, in.CoverImagePath)
	defer func() {
		if err != nil {
			s.discard(ctx, stored...)
		}
		s.record("register", err)
	}()

	if blank(in.Username, in.Email, in.FullName, in.Password) {
		return models.PublicUser{}, invalid("all fields are required")
	}

	username := normalize(in.Username)
	email := normalize(in.Email)
	if err := s.checkEmail(email); err != nil {
		return models.PublicUser{}, err
	}

	sctx, cancel := s.storeCtx(ctx)
	exists, err := s.users.ExistsByUsernameOrEmail(sctx, username, email)
	cancel()
	if err != nil {
		return models.PublicUser{}, common.Classify(err)
	}
	if exists {
		return models.PublicUser{}, common.NewError(common.ErrorConflict, "user with email or username already exists")
	}

	var avatarURL, coverURL string
	if in.AvatarPath != "" {
		res, err := s.uploader.Upload(ctx, in.AvatarPath)
		if err != nil {
			return models.PublicUser{}, s.uploadFailure(ctx, "avatar", err)
		}
		stored = append(stored, res.Key)
		avatarURL = res.URL
	}
	if in.CoverImagePath != "" {
		res, err := s.uploader.Upload(ctx, in.CoverImagePath)
		if err != nil {
			return models.PublicUser{}, s.uploadFailure(ctx, "cover image", err)
		}
		stored = append(stored, res.Key)
		coverURL = res.URL
	}

	hash, err := auth.HashPassword(in.Password, s.opts.BcryptCost)
	if err != nil {
		return models.PublicUser{}, common.Classify(err)
	}

	sctx, cancel = s.storeCtx(ctx)
	defer cancel()
	created, err := s.users.Create(sctx, &models.User{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: hash,
	})
	if err != nil {
		return models.PublicUser{}, common.Classify(err)
	}

	s.log.Info(ctx, "user registered", "user_id", created.ID)
	return created.Public(), nil
}

// discard deletes objects uploaded by a call that failed later on. It runs
// even when ctx is already cancelled.
func (s *UserService) discard(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.uploader.Delete(ctx, key); err != nil {
			s.log.Warn(ctx, "orphaned media object", "key", key, "error", err)
		}
	}
}

func (s *UserService) uploadFailure(ctx context.Context, what string, err error) error {
	s.log.Warn(ctx, "upload failed", "what", what, "error", err)
	if errors.Is(err, common.ErrorUnavailable) {
		return err
	}
	if errors.Is(err, common.ErrorUploadFailed) {
		return common.NewError(common.ErrorUploadFailed, "error while uploading "+what)
	}
	return common.Classify(err)
}

// Login verifies credentials, issues a fresh pair and makes its refresh
// token the only valid one.
func (s *UserService) Login(ctx context.Context, in LoginInput) (res *LoginResult, err error) {
	defer func() { s.record("login", err) }()

	if blank(in.Password) || (blank(in.Username) && blank(in.Email)) {
		return nil, invalid("username or email and password are required")
	}

	sctx, cancel := s.storeCtx(ctx)
	user, err := s.users.FindByLogin(sctx, normalize(in.Username), normalize(in.Email))
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorNotFound, "user does not exist")
		}
		return nil, common.Classify(err)
	}

	if !auth.VerifyPassword(in.Password, user.PasswordHash) {
		return nil, unauthorized("invalid user credentials")
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	sctx, cancel = s.storeCtx(ctx)
	defer cancel()
	if err := s.sessions.Set(sctx, user.ID, pair.RefreshToken); err != nil {
		return nil, common.Classify(err)
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{User: user.Public(), Tokens: pair}, nil
}

// Refresh exchanges the stored refresh token for a new pair. A token that
// is no longer the stored one is rejected and nothing is rotated.
func (s *UserService) Refresh(ctx context.Context, presented string) (pair *TokenPair, err error) {
	defer func() { s.record("refresh", err) }()

	if presented == "" {
		return nil, unauthorized("unauthorized request")
	}

	info, err := s.tokens.Verify(presented, auth.KindRefresh)
	if err != nil {
		return nil, unauthorized("invalid refresh token")
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	match, err := s.sessions.Matches(sctx, info.UserID, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, unauthorized("invalid refresh token")
		}
		return nil, common.Classify(err)
	}
	if !match {
		return nil, unauthorized("refresh token is expired or used")
	}

	next, err := s.issuePair(info.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Rotate(sctx, info.UserID, presented, next.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, unauthorized("invalid refresh token")
		}
		return nil, common.Classify(err)
	}

	return &next, nil
}

// Logout clears the stored refresh token.
func (s *UserService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { s.record("logout", err) }()

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.sessions.Clear(sctx, userID); err != nil {
		return common.Classify(err)
	}

	s.log.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// ChangePassword replaces the password hash after re-checking the old
// password.
func (s *UserService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) (err error) {
	defer func() { s.record("change_password", err) }()

	if blank(in.OldPassword, in.NewPassword) {
		return invalid("old and new password are required")
	}

	sctx, cancel := s.storeCtx(ctx)
	user, err := s.users.FindByID(sctx, userID)
	cancel()
	if err != nil {
		return common.Classify(err)
	}

	if !auth.VerifyPassword(in.OldPassword, user.PasswordHash) {
		return invalid("invalid old password")
	}

	hash, err := auth.HashPassword(in.NewPassword, s.opts.BcryptCost)
	if err != nil {
		return common.Classify(err)
	}

	sctx, cancel = s.storeCtx(ctx)
	defer cancel()
	_, err = s.users.Update(sctx, userID, models.UserUpdate{
		PasswordHash:      &hash,
		ClearRefreshToken: s.opts.RevokeSessionsOnPasswordChange,
	})
	if err != nil {
		return common.Classify(err)
	}
	return nil
}

func (s *UserService) CurrentUser(ctx context.Context, userID string) (models.PublicUser, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.FindByID(sctx, userID)
	if err != nil {
		return models.PublicUser{}, common.Classify(err)
	}
	return user.Public(), nil
}

func (s *UserService) UpdateAccountDetails(ctx context.Context, userID string, in AccountDetailsInput) (models.PublicUser, error) {
	if blank(in.FullName, in.Email) {
		return models.PublicUser{}, invalid("all fields are required")
	}

	email := normalize(in.Email)
	if err := s.checkEmail(email); err != nil {
		return models.PublicUser{}, err
	}
	fullName := strings.TrimSpace(in.FullName)

	return s.update(ctx, userID, models.UserUpdate{FullName: &fullName, Email: &email})
}

// UpdateAvatar uploads localPath and stores its URL. The file is removed
// afterwards.
func (s *UserService) UpdateAvatar(ctx context.Context, userID, localPath string) (models.PublicUser, error) {
	return s.updateImage(ctx, userID, localPath, "avatar", func(url string) models.UserUpdate {
		return models.UserUpdate{Avatar: &url}
	})
}

// UpdateCoverImage uploads localPath and stores its URL. The file is
// removed afterwards.
func (s *UserService) UpdateCoverImage(ctx context.Context, userID, localPath string) (models.PublicUser, error) {
	return s.updateImage(ctx, userID, localPath, "cover image", func(url string) models.UserUpdate {
		return models.UserUpdate{CoverImage: &url}
	})
}

func (s *UserService) updateImage(ctx context.Context, userID, localPath, what string, upd func(url string) models.UserUpdate) (models.PublicUser, error) {
	defer removeTemp(localPath)

	if localPath == "" {
		return models.PublicUser{}, invalid(what + " file is missing")
	}

	res, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		return models.PublicUser{}, s.uploadFailure(ctx, what, err)
	}

	user, err := s.update(ctx, userID, upd(res.URL))
	if err != nil {
		s.discard(ctx, res.Key)
		return models.PublicUser{}, err
	}
	return user, nil
}

func (s *UserService) update(ctx context.Context, userID string, upd models.UserUpdate) (models.PublicUser, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.Update(sctx, userID, upd)
	if err != nil {
		return models.PublicUser{}, common.Classify(err)
	}
	return user.Public(), nil
}

func (s *UserService) issuePair(userID string) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, common.Classify(err)
	}
	refresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return TokenPair{}, common.Classify(err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
