package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/uhhharsh/VidShare/internal/common"
	"github.com/uhhharsh/VidShare/internal/server/auth"
	"github.com/uhhharsh/VidShare/internal/server/media"
	"github.com/uhhharsh/VidShare/internal/server/models"
	"github.com/uhhharsh/VidShare/internal/server/repositories/users"
)

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	failOn  string
	paths   []string
	deleted []string
}

func (f *fakeUploader) Upload(ctx context.Context, localPath string) (media.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(localPath)
	if f.err != nil && (f.failOn == "" || f.failOn == name) {
		return media.Result{}, f.err
	}
	f.paths = append(f.paths, localPath)
	return media.Result{URL: "http://cdn/" + name, Key: "media/" + name}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeEvents struct{ got []string }

func (f *fakeEvents) AuthEvent(op, outcome string) { f.got = append(f.got, op+":"+outcome) }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc      *UserService
	repo     *users.MemoryRepository
	issuer   *auth.Issuer
	uploader *fakeUploader
	clock    *testClock
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	if opts.StoreTimeout == 0 {
		opts.StoreTimeout = time.Second
	}
	clock := &testClock{t: time.Unix(1_700_000_000, 0)}
	repo := users.NewMemoryRepository()
	issuer := auth.NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 240*time.Hour, auth.WithClock(clock.Now))
	up := &fakeUploader{}
	return &fixture{
		svc:      NewUserService(repo, issuer, up, nil, opts),
		repo:     repo,
		issuer:   issuer,
		uploader: up,
		clock:    clock,
	}
}

func (f *fixture) register(t *testing.T, username, email, password string) models.PublicUser {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{
		Username: username, Email: email, FullName: "Test " + username, Password: password,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) login(t *testing.T, username, password string) *LoginResult {
	t.Helper()
	res, err := f.svc.Login(context.Background(), LoginInput{Username: username, Password: password})
	require.NoError(t, err)
	return res
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("img"), 0o600))
	return p
}

func TestRegister(t *testing.T) {
	f := newFixture(t, Options{})
	avatar := tempFile(t, "avatar.png")

	u, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "  Alice ", Email: "Alice@X.com", FullName: " Alice ", Password: "P@ss1", AvatarPath: avatar,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.Equal(t, "Alice", u.FullName)
	assert.Equal(t, "http://cdn/avatar.png", u.Avatar)
	assert.Empty(t, u.CoverImage)

	stored, err := f.repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "P@ss1", stored.PasswordHash)
	assert.True(t, auth.VerifyPassword("P@ss1", stored.PasswordHash))
	assert.Nil(t, stored.RefreshToken)

	_, err = os.Stat(avatar)
	assert.True(t, os.IsNotExist(err), "temporary upload is removed")
}

func TestRegister_InvalidInput(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{name: "missing username", in: RegisterInput{Email: "a@x.com", FullName: "A", Password: "p"}},
		{name: "blank full name", in: RegisterInput{Username: "a", Email: "a@x.com", FullName: "   ", Password: "p"}},
		{name: "missing password", in: RegisterInput{Username: "a", Email: "a@x.com", FullName: "A"}},
		{name: "bad email", in: RegisterInput{Username: "a", Email: "not-an-email", FullName: "A", Password: "p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, common.ErrorInvalidInput)
		})
	}
}

func TestRegister_DuplicateCreatesNoRecord(t *testing.T) {
	f := newFixture(t, Options{})
	first := f.register(t, "alice", "alice@x.com", "P@ss1")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "ALICE", Email: "other@x.com", FullName: "Other", Password: "x",
	})
	require.ErrorIs(t, err, common.ErrorConflict)

	_, err = f.svc.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "alice@x.com", FullName: "Bob", Password: "x",
	})
	require.ErrorIs(t, err, common.ErrorConflict)

	_, err = f.repo.FindByLogin(context.Background(), "bob", "other@x.com")
	require.ErrorIs(t, err, common.ErrorNotFound)

	u, err := f.repo.FindByLogin(context.Background(), "alice", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, u.ID)
	assert.Equal(t, "Test alice", u.FullName)
}

func TestRegister_UploadFailureCreatesNoRecord(t *testing.T) {
	f := newFixture(t, Options{})
	f.uploader.err = common.NewError(common.ErrorUploadFailed, "boom")
	cover := tempFile(t, "cover.png")

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "alice@x.com", FullName: "Alice", Password: "p", CoverImagePath: cover,
	})
	require.ErrorIs(t, err, common.ErrorUploadFailed)
	assert.Equal(t, "error while uploading cover image", common.Message(err, ""))

	exists, err := f.repo.ExistsByUsernameOrEmail(context.Background(), "alice", "alice@x.com")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = os.Stat(cover)
	assert.True(t, os.IsNotExist(err))
}

func TestRegister_FailureDeletesUploadedMedia(t *testing.T) {
	f := newFixture(t, Options{})
	f.uploader.err = common.NewError(common.ErrorUploadFailed, "boom")
	f.uploader.failOn = "cover.png"

	_, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "alice@x.com", FullName: "Alice", Password: "p",
		AvatarPath: tempFile(t, "avatar.png"), CoverImagePath: tempFile(t, "cover.png"),
	})
	require.ErrorIs(t, err, common.ErrorUploadFailed)
	assert.Equal(t, []string{"media/avatar.png"}, f.uploader.deleted)
}

type createFailsRepo struct {
	*users.MemoryRepository
}

func (r createFailsRepo) Create(context.Context, *models.User) (*models.User, error) {
	return nil, errors.New("db error: connection reset")
}

func (r createFailsRepo) Update(context.Context, string, models.UserUpdate) (*models.User, error) {
	return nil, errors.New("db error: connection reset")
}

func TestStoreFailureDeletesUploadedMedia(t *testing.T) {
	up := &fakeUploader{}
	issuer := auth.NewIssuer("a", "r", time.Minute, time.Hour)
	svc := NewUserService(createFailsRepo{users.NewMemoryRepository()}, issuer, up, nil, Options{BcryptCost: bcrypt.MinCost})

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice", Email: "alice@x.com", FullName: "Alice", Password: "p",
		AvatarPath: tempFile(t, "avatar.png"), CoverImagePath: tempFile(t, "cover.png"),
	})
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, []string{"media/avatar.png", "media/cover.png"}, up.deleted)

	up.deleted = nil
	_, err = svc.UpdateAvatar(context.Background(), "u1", tempFile(t, "new.png"))
	require.ErrorIs(t, err, common.ErrorInternal)
	assert.Equal(t, []string{"media/new.png"}, up.deleted)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, Options{})
	u := f.register(t, "alice", "alice@x.com", "P@ss1")

	res := f.login(t, "alice", "P@ss1")
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)

	info, err := f.issuer.Verify(res.Tokens.AccessToken, auth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, info.UserID)

	stored, err := f.repo.GetRefreshToken(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, res.Tokens.RefreshToken, *stored)

	byEmail, err := f.svc.Login(context.Background(), LoginInput{Email: "ALICE@x.com", Password: "P@ss1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.User.ID)
}

func TestLogin_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	f.register(t, "alice", "alice@x.com", "P@ss1")

	_, err := f.svc.Login(context.Background(), LoginInput{Password: "P@ss1"})
	require.ErrorIs(t, err, common.ErrorInvalidInput)

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "alice"})
	require.ErrorIs(t, err, common.ErrorInvalidInput)

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "ghost", Password: "P@ss1"})
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "wrong"})
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	f := newFixture(t, Options{})
	f.register(t, "alice", "alice@x.com", "P@ss1")

	first := f.login(t, "alice", "P@ss1")
	second := f.login(t, "alice", "P@ss1")

	_, err := f.svc.Refresh(context.Background(), first.Tokens.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.Refresh(context.Background(), second.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_AfterLoginYieldsDifferentPair(t *testing.T) {
	f := newFixture(t, Options{})
	f.register(t, "alice", "alice@x.com", "P@ss1")
	res := f.login(t, "alice", "P@ss1")

	pair, err := f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, res.Tokens.AccessToken, pair.AccessToken)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)

	stored, err := f.repo.GetRefreshToken(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, *stored)
}

func TestRefresh_ReuseIsRejected(t *testing.T) {
	f := newFixture(t, Options{})
	f.register(t, "alice", "alice@x.com", "P@ss1")
	res := f.login(t, "alice", "P@ss1")

	pair, err := f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, "refresh token is expired or used", common.Message(err, ""))

	stored, err := f.repo.GetRefreshToken(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, *stored, "a failed refresh never rotates")
}

func TestRefresh_ConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture(t, Options{})
	f.register(t, "alice", "alice@x.com", "P@ss1")
	res := f.login(t, "alice", "P@ss1")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, common.ErrorUnauthorized)
	}
	assert.Equal(t, 1, ok)
}

func TestRefresh_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	u := f.register(t, "alice", "alice@x.com", "P@ss1")
	res := f.login(t, "alice", "P@ss1")

	_, err := f.svc.Refresh(context.Background(), "")
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.Refresh(context.Background(), "garbage")
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.Refresh(context.Background(), res.Tokens.AccessToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized, "access token is not a refresh token")

	ghost, err := f.issuer.IssueRefresh("ghost")
	require.NoError(t, err)
	_, err = f.svc.Refresh(context.Background(), ghost)
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	f.clock.Advance(241 * time.Hour)
	_, err = f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	stored, err := f.repo.GetRefreshToken(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Tokens.RefreshToken, *stored)
}

func TestLogout_ThenRefreshFails(t *testing.T) {
	f := newFixture(t, Options{})
	f.register(t, "alice", "alice@x.com", "P@ss1")
	res := f.login(t, "alice", "P@ss1")

	require.NoError(t, f.svc.Logout(context.Background(), res.User.ID))

	stored, err := f.repo.GetRefreshToken(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, Options{})
	u := f.register(t, "alice", "alice@x.com", "old-pass")

	before, err := f.repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)

	err = f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{OldPassword: "wrong", NewPassword: "new-pass"})
	require.ErrorIs(t, err, common.ErrorInvalidInput)
	assert.Equal(t, "invalid old password", common.Message(err, ""))

	after, err := f.repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)

	require.NoError(t, f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{OldPassword: "old-pass", NewPassword: "new-pass"}))

	f.login(t, "alice", "new-pass")
	_, err = f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "old-pass"})
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestChangePassword_KeepsSessionsByDefault(t *testing.T) {
	f := newFixture(t, Options{})
	u := f.register(t, "alice", "alice@x.com", "old-pass")
	res := f.login(t, "alice", "old-pass")

	require.NoError(t, f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{OldPassword: "old-pass", NewPassword: "new-pass"}))

	_, err := f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestChangePassword_RevokesSessionsWhenConfigured(t *testing.T) {
	f := newFixture(t, Options{RevokeSessionsOnPasswordChange: true})
	u := f.register(t, "alice", "alice@x.com", "old-pass")
	res := f.login(t, "alice", "old-pass")

	require.NoError(t, f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{OldPassword: "old-pass", NewPassword: "new-pass"}))

	_, err := f.svc.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestChangePassword_MissingFields(t *testing.T) {
	f := newFixture(t, Options{})
	u := f.register(t, "alice", "alice@x.com", "old-pass")

	err := f.svc.ChangePassword(context.Background(), u.ID, ChangePasswordInput{OldPassword: "old-pass"})
	require.ErrorIs(t, err, common.ErrorInvalidInput)
}

func TestUpdateAccountDetails(t *testing.T) {
	f := newFixture(t, Options{})
	alice := f.register(t, "alice", "alice@x.com", "p")
	f.register(t, "bob", "bob@x.com", "p")

	u, err := f.svc.UpdateAccountDetails(context.Background(), alice.ID, AccountDetailsInput{FullName: "Alice L", Email: "Alice.L@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "Alice L", u.FullName)
	assert.Equal(t, "alice.l@x.com", u.Email)

	_, err = f.svc.UpdateAccountDetails(context.Background(), alice.ID, AccountDetailsInput{FullName: "Alice", Email: "bob@x.com"})
	require.ErrorIs(t, err, common.ErrorConflict)

	_, err = f.svc.UpdateAccountDetails(context.Background(), alice.ID, AccountDetailsInput{FullName: "", Email: "a@x.com"})
	require.ErrorIs(t, err, common.ErrorInvalidInput)

	_, err = f.svc.UpdateAccountDetails(context.Background(), alice.ID, AccountDetailsInput{FullName: "A", Email: "nope"})
	require.ErrorIs(t, err, common.ErrorInvalidInput)
}

func TestUpdateImages(t *testing.T) {
	f := newFixture(t, Options{})
	alice := f.register(t, "alice", "alice@x.com", "p")

	avatar := tempFile(t, "new-avatar.png")
	u, err := f.svc.UpdateAvatar(context.Background(), alice.ID, avatar)
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/new-avatar.png", u.Avatar)
	_, statErr := os.Stat(avatar)
	assert.True(t, os.IsNotExist(statErr))

	cover := tempFile(t, "cover.jpg")
	u, err = f.svc.UpdateCoverImage(context.Background(), alice.ID, cover)
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/cover.jpg", u.CoverImage)
	assert.Equal(t, "http://cdn/new-avatar.png", u.Avatar)

	_, err = f.svc.UpdateAvatar(context.Background(), alice.ID, "")
	require.ErrorIs(t, err, common.ErrorInvalidInput)
	assert.Empty(t, f.uploader.deleted, "successful updates keep their objects")

	f.uploader.err = common.NewError(common.ErrorUnavailable, "media storage timed out")
	_, err = f.svc.UpdateCoverImage(context.Background(), alice.ID, tempFile(t, "c.png"))
	require.ErrorIs(t, err, common.ErrorUnavailable)
}

func TestCurrentUser(t *testing.T) {
	f := newFixture(t, Options{})
	alice := f.register(t, "alice", "alice@x.com", "p")

	u, err := f.svc.CurrentUser(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, u)

	_, err = f.svc.CurrentUser(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

type slowRepo struct {
	*users.MemoryRepository
}

func (r slowRepo) FindByLogin(ctx context.Context, username, email string) (*models.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLogin_StoreTimeoutIsUnavailable(t *testing.T) {
	repo := slowRepo{users.NewMemoryRepository()}
	issuer := auth.NewIssuer("a", "r", time.Minute, time.Hour)
	svc := NewUserService(repo, issuer, &fakeUploader{}, nil, Options{BcryptCost: bcrypt.MinCost, StoreTimeout: 10 * time.Millisecond})

	_, err := svc.Login(context.Background(), LoginInput{Username: "alice", Password: "p"})
	require.ErrorIs(t, err, common.ErrorUnavailable)
}

type brokenRepo struct {
	*users.MemoryRepository
}

func (r brokenRepo) ExistsByUsernameOrEmail(context.Context, string, string) (bool, error) {
	return false, errors.New("db error: connection reset")
}

func TestRegister_StoreFailureIsInternal(t *testing.T) {
	repo := brokenRepo{users.NewMemoryRepository()}
	issuer := auth.NewIssuer("a", "r", time.Minute, time.Hour)
	svc := NewUserService(repo, issuer, &fakeUploader{}, nil, Options{BcryptCost: bcrypt.MinCost})

	_, err := svc.Register(context.Background(), RegisterInput{Username: "a", Email: "a@x.com", FullName: "A", Password: "p"})
	require.ErrorIs(t, err, common.ErrorInternal)
}

func TestEvents(t *testing.T) {
	f := newFixture(t, Options{})
	ev := &fakeEvents{}
	f.svc.WithEvents(ev)

	f.register(t, "alice", "alice@x.com", "p")
	_, _ = f.svc.Login(context.Background(), LoginInput{Username: "alice", Password: "bad"})
	_, _ = f.svc.Refresh(context.Background(), "")

	assert.Equal(t, []string{"register:ok", "login:rejected", "refresh:rejected"}, ev.got)
}
