package handlers

import (
	"errors"
	"net/http"

	"github.com/3Eeeecho/go-fileshare/internal/handlers/response"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fileshare/internal/pkg/xerr"
	"github.com/3Eeeecho/go-fileshare/internal/services/admin"
	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=255"`
	Email    string `json:"email" binding:"required,email"`
}

// LoginRequest 登录请求结构体
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // 可以是用户名或邮箱
	Password   string `json:"password" binding:"required"`
}

// @Summary 用户注册
// @Description 用户注册接口
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body RegisterRequest true "注册信息"
// @Success 200 {object} response.Response "注册成功"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 409 {object} response.Response "用户名或邮箱已存在"
// @Router /api/v1/auth/register [post]
func Register(authService admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		user, err := authService.RegisterUser(c.Request.Context(), req.Username, req.Password, req.Email)
		if err != nil {
			switch {
			case errors.Is(err, xerr.ErrUserAlreadyExists):
				response.Error(c, http.StatusConflict, xerr.UserAlreadyExistsCode, err.Error())
			case errors.Is(err, xerr.ErrEmailAlreadyExists):
				response.Error(c, http.StatusConflict, xerr.EmailAlreadyExistsCode, err.Error())
			default:
				response.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "Failed to register user")
			}
			return
		}

		response.Success(c, http.StatusOK, "User registered successfully", gin.H{
			"user_id":  user.ID,
			"username": user.Username,
			"email":    user.Email,
		})
	}
}

// @Summary 用户登录
// @Description 用户登录接口，identifier 可为用户名或邮箱
// @Tags 用户认证
// @Accept json
// @Produce json
// @Param data body LoginRequest true "登录信息"
// @Success 200 {object} response.Response "登录成功，返回token"
// @Failure 400 {object} response.Response "参数错误"
// @Failure 401 {object} response.Response "用户名或密码错误"
// @Router /api/v1/auth/login [post]
func Login(authService admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}

		tokenString, err := authService.LoginUser(c.Request.Context(), req.Identifier, req.Password)
		if err != nil {
			if errors.Is(err, xerr.ErrInvalidCredentials) {
				response.Error(c, http.StatusUnauthorized, xerr.InvalidCredentialsCode, err.Error())
				return
			}
			response.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "Failed to login")
			return
		}

		response.Success(c, http.StatusOK, "Login successful", gin.H{"token": tokenString})
	}
}

// @Summary 当前用户信息
// @Description 返回当前登录用户的基本信息
// @Tags 用户认证
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} response.Response "用户信息"
// @Failure 401 {object} response.Response "未授权"
// @Router /api/v1/auth/me [get]
func Me(authService admin.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserIDFromContext(c)
		if !ok {
			return
		}

		user, err := authService.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, xerr.ErrUserNotFound) {
				response.Error(c, http.StatusNotFound, xerr.UserNotFoundCode, err.Error())
				return
			}
			response.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "Failed to get user")
			return
		}

		response.Success(c, http.StatusOK, "OK", user)
	}
}
