package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/timehug/timehug/internal/auth/domain"
	creditdomain "github.com/timehug/timehug/internal/credit/domain"
	profiledomain "github.com/timehug/timehug/internal/profile/domain"
	"github.com/timehug/timehug/internal/usercontext"
)

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (s *Server) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	user, err := s.authsvc.SignUp(ctx, authdomain.SignUpRequest{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.profileRepo.Ensure(ctx, &profiledomain.Profile{
		UserID:        user.ID,
		DisplayName:   user.DisplayName,
		CreditBalance: 0,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.CreatedAt,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	if grant := s.cfg.Bootstrap.SignupCreditGrant; grant > 0 {
		if err := s.creditSvc.Grant(ctx, creditdomain.GrantRequest{
			UserID:      user.ID,
			Amount:      grant,
			Type:        creditdomain.TypeGrant,
			Description: "signup grant",
		}); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	result, err := s.authsvc.Login(ctx, authdomain.LoginRequest{
		Email:     user.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.sessions.Set(c, result.RawToken, result.ExpiresAt)

	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(result.User)})
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.authsvc.GetUser(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func toUserResponse(user *authdomain.User) userResponse {
	return userResponse{
		ID:          user.ID.String(),
		Email:       user.Email,
		DisplayName: strings.TrimSpace(user.DisplayName),
	}
}
