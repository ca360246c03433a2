package rest

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/uhhharsh/VidShare/internal/common"
	"github.com/uhhharsh/VidShare/internal/server/auth"
	"github.com/uhhharsh/VidShare/internal/server/models"
	"github.com/uhhharsh/VidShare/internal/server/services"
)

type registerRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required"`
	FullName string `json:"fullName" form:"fullName" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBind(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, common.NewError(common.ErrorInvalidInput, "request body too large"))
			return false
		}
		s.fail(c, common.NewError(common.ErrorInvalidInput, translateValidationError(err)))
		return false
	}
	return true
}

func (s *Server) setSessionCookies(c *gin.Context, pair services.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.AccessTokenCookieName, pair.AccessToken, int(s.opts.AccessTTL.Seconds()), "/", "", s.opts.CookieSecure, true)
	c.SetCookie(common.RefreshTokenCookieName, pair.RefreshToken, int(s.opts.RefreshTTL.Seconds()), "/", "", s.opts.CookieSecure, true)
}

func (s *Server) clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.AccessTokenCookieName, "", -1, "/", "", s.opts.CookieSecure, true)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/", "", s.opts.CookieSecure, true)
}

// currentUserID is only called behind requireUser.
func currentUserID(c *gin.Context) string {
	u, _ := auth.UserFromContext(c.Request.Context())
	return u.ID
}

// register accepts multipart/form-data with optional avatar and coverImage
// files, or a plain JSON body.
func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !s.bind(c, &req) {
		return
	}

	in := services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
	}

	if isMultipart(c) {
		var err error
		if in.AvatarPath, err = s.saveFormFile(c, "avatar"); err != nil {
			s.fail(c, err)
			return
		}
		if in.CoverImagePath, err = s.saveFormFile(c, "coverImage"); err != nil {
			removeFiles(in.AvatarPath)
			s.fail(c, err)
			return
		}
	}

	user, err := s.accounts.Register(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, http.StatusCreated, user, "User registered successfully")
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.accounts.Login(c.Request.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setSessionCookies(c, res.Tokens)
	ok(c, http.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "User logged in successfully")
}

// refreshToken reads the refresh token from its cookie, falling back to the
// JSON body.
func (s *Server) refreshToken(c *gin.Context) {
	token, err := c.Cookie(common.RefreshTokenCookieName)
	if err != nil || token == "" {
		var req refreshRequest
		// An empty body is treated as a missing token.
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}

	pair, err := s.accounts.Refresh(c.Request.Context(), token)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.setSessionCookies(c, *pair)
	ok(c, http.StatusOK, pair, "Access token refreshed")
}

func (s *Server) logout(c *gin.Context) {
	if err := s.accounts.Logout(c.Request.Context(), currentUserID(c)); err != nil {
		s.fail(c, err)
		return
	}

	s.clearSessionCookies(c)
	ok(c, http.StatusOK, gin.H{}, "User logged out")
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !s.bind(c, &req) {
		return
	}

	err := s.accounts.ChangePassword(c.Request.Context(), currentUserID(c), services.ChangePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{}, "Password changed successfully")
}

func (s *Server) currentUser(c *gin.Context) {
	user, err := s.accounts.CurrentUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, user, "Current user fetched successfully")
}

func (s *Server) updateAccount(c *gin.Context) {
	var req updateAccountRequest
	if !s.bind(c, &req) {
		return
	}

	user, err := s.accounts.UpdateAccountDetails(c.Request.Context(), currentUserID(c), services.AccountDetailsInput{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, user, "Account details updated successfully")
}

func (s *Server) updateAvatar(c *gin.Context) {
	s.updateImage(c, "avatar", s.accounts.UpdateAvatar, "Avatar updated successfully")
}

func (s *Server) updateCoverImage(c *gin.Context) {
	s.updateImage(c, "coverImage", s.accounts.UpdateCoverImage, "Cover image updated successfully")
}

type imageUpdater func(ctx context.Context, userID, localPath string) (models.PublicUser, error)

func (s *Server) updateImage(c *gin.Context, field string, update imageUpdater, message string) {
	path, err := s.saveFormFile(c, field)
	if err != nil {
		s.fail(c, err)
		return
	}
	if path == "" {
		s.fail(c, common.NewError(common.ErrorInvalidInput, field+" file is missing"))
		return
	}

	user, err := update(c.Request.Context(), currentUserID(c), path)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, user, message)
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}
