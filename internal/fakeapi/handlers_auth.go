package fakeapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (a *API) root() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Agde Moto API", "status": "running", "version": a.version})
	}
}

func (a *API) health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "message": "API is running"})
	}
}

func (a *API) login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error."})
			return
		}
		if body.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"password": []string{"This field is required."}})
			return
		}
		admin, ok := a.admins.authenticate(body.Username, body.Password)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "No active account found with the given credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access":  a.issue(admin.ID, accessTokenType, a.accessTTL),
			"refresh": a.issue(admin.ID, refreshTokenType, a.refreshTTL),
		})
	}
}

func (a *API) refresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Refresh string `json:"refresh"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Refresh == "" {
			c.JSON(http.StatusBadRequest, gin.H{"refresh": []string{"This field is required."}})
			return
		}
		userID, err := a.verify(body.Refresh, refreshTokenType)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access": a.issue(userID, accessTokenType, a.accessTTL)})
	}
}

func (a *API) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, raw, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		userID, err := a.verify(raw, accessTokenType)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		admin, ok := a.admins.get(userID)
		if !ok || !admin.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "User not found", "code": "user_not_found"})
			return
		}
		c.Set(adminKey, admin)
		c.Next()
	}
}

func (a *API) requireSuperuser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentAdmin(c).IsSuperuser {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
			return
		}
		c.Next()
	}
}

func currentAdmin(c *gin.Context) admin {
	v, _ := c.Get(adminKey)
	adm, _ := v.(admin)
	return adm
}

func (a *API) otpRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email string `json:"email"`
		}
		_ = c.ShouldBindJSON(&body)
		email := strings.ToLower(strings.TrimSpace(body.Email))
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email required"})
			return
		}
		if adm, ok := a.admins.byEmail(email); ok && adm.IsSuperuser && adm.IsActive {
			a.mu.Lock()
			a.otps[email] = OTPCode
			a.mu.Unlock()
		}
		c.JSON(http.StatusOK, gin.H{"message": "If an admin account exists for this email, a code has been sent."})
	}
}

func (a *API) checkOTP(email, code string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	stored, ok := a.otps[email]
	return ok && stored == code
}

func (a *API) otpVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email string `json:"email"`
			Code  string `json:"code"`
		}
		_ = c.ShouldBindJSON(&body)
		if !a.checkOTP(strings.ToLower(strings.TrimSpace(body.Email)), strings.TrimSpace(body.Code)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired code"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Code is valid"})
	}
}

func (a *API) otpConfirm() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email       string `json:"email"`
			Code        string `json:"code"`
			NewPassword string `json:"new_password"`
		}
		_ = c.ShouldBindJSON(&body)
		email := strings.ToLower(strings.TrimSpace(body.Email))
		code := strings.TrimSpace(body.Code)
		password := strings.TrimSpace(body.NewPassword)

		if email == "" || code == "" || password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email, code and new password are required"})
			return
		}
		if len(password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "The password must be at least 8 characters long"})
			return
		}
		if !a.checkOTP(email, code) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired code"})
			return
		}
		adm, ok := a.admins.byEmail(email)
		if !ok || !adm.IsSuperuser || !adm.IsActive {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		if err := a.admins.setPassword(adm.ID, password); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		a.mu.Lock()
		delete(a.otps, email)
		a.mu.Unlock()

		c.JSON(http.StatusOK, gin.H{
			"message": "Password reset successfully.",
			"access":  a.issue(adm.ID, accessTokenType, a.accessTTL),
			"refresh": a.issue(adm.ID, refreshTokenType, a.refreshTTL),
		})
	}
}
