package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"xrayqc/api/internal/middleware"
	"xrayqc/api/internal/models"
	"xrayqc/api/internal/repository"
	"xrayqc/api/internal/service"
)

type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Affiliation *string   `json:"affiliation,omitempty"`
	Role        string    `json:"role"`
	IsApproved  bool      `json:"is_approved"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Name:        user.Name,
		Affiliation: user.Affiliation,
		Role:        string(user.Role),
		IsApproved:  user.IsApproved,
		CreatedAt:   user.CreatedAt,
	}
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Name        string `json:"name" binding:"required"`
	Affiliation string `json:"affiliation"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Required fields missing"})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		Name:        req.Name,
		Affiliation: req.Affiliation,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Username or email already exists"})
			return
		}
		h.log.Error().Err(err).Msg("registration failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Registration failed", "error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Registration pending admin approval",
		"user":    toUserResponse(user),
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password required"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":       result.Token,
		"role":        result.Role,
		"is_approved": result.IsApproved,
	})
}

// AuthStatus is where approval gating is enforced: a pending user holds a
// valid token but gets 403 and no profile payload.
func (h HandlerSet) AuthStatus(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Access token required"})
		return
	}

	user, err := h.authService.Status(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Status check failed", "error": err.Error()})
		return
	}

	if !user.IsApproved {
		c.JSON(http.StatusForbidden, gin.H{
			"approved": false,
			"message":  "Pending admin approval",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"approved": true,
		"role":     user.Role,
		"user":     toUserResponse(user),
	})
}

// nullableString tells an explicit JSON null apart from an absent field.
// For the affiliation, null clears the column while absence leaves it alone.
type nullableString struct {
	present bool
	value   *string
}

func (n *nullableString) UnmarshalJSON(data []byte) error {
	n.present = true
	if string(data) == "null" {
		n.value = nil
		return nil
	}
	return json.Unmarshal(data, &n.value)
}

type profileRequest struct {
	NewPassword    string         `json:"new_password"`
	NewEmail       *string        `json:"new_email"`
	NewAffiliation nullableString `json:"new_affiliation"`
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Access token required"})
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	input := service.ProfileInput{
		NewPassword: req.NewPassword,
		NewEmail:    req.NewEmail,
	}
	if req.NewAffiliation.present {
		if req.NewAffiliation.value == nil {
			input.ClearAffiliation = true
		} else {
			input.NewAffiliation = req.NewAffiliation.value
		}
	}

	user, err := h.authService.UpdateProfile(c.Request.Context(), claims.UserID, input)
	if err != nil {
		if errors.Is(err, service.ErrNoUpdates) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "No updates provided"})
			return
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Profile update failed", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    toUserResponse(user),
	})
}
