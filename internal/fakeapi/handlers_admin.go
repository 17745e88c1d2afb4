package fakeapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func defaultSettings() map[string]any {
	weekday := map[string]any{"open": "09:00", "close": "18:00", "is_closed": false}
	return map[string]any{
		"name":        "Agde Moto Gattuso",
		"address":     "",
		"phone":       "",
		"email":       "",
		"website":     "",
		"description": "",
		"social_media": map[string]any{
			"facebook": "", "instagram": "", "youtube": "", "twitter": "", "linkedin": "",
		},
		"business_hours": map[string]any{
			"monday":    weekday,
			"tuesday":   weekday,
			"wednesday": weekday,
			"thursday":  weekday,
			"friday":    weekday,
			"saturday":  map[string]any{"open": "09:00", "close": "17:00", "is_closed": false},
			"sunday":    map[string]any{"open": "10:00", "close": "16:00", "is_closed": true},
		},
		"seo_settings": map[string]any{
			"meta_title": "", "meta_description": "", "meta_keywords": "", "og_title": "", "og_description": "", "og_image": "",
		},
	}
}

func (a *API) getSettings() gin.HandlerFunc {
	return func(c *gin.Context) {
		a.mu.Lock()
		out := clone(a.settings)
		a.mu.Unlock()
		c.JSON(http.StatusOK, out)
	}
}

// putSettings applies a partial update, as the API does.
func (a *API) putSettings() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "JSON parse error."})
			return
		}
		if name, ok := body["name"].(string); ok && name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"name": []string{"This field may not be blank."}})
			return
		}
		a.mu.Lock()
		for k, v := range body {
			if _, known := a.settings[k]; known {
				a.settings[k] = v
			}
		}
		out := clone(a.settings)
		a.mu.Unlock()
		c.JSON(http.StatusOK, out)
	}
}

// SetGarageSettings replaces fields of the stored settings.
func (a *API) SetGarageSettings(fields map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range fields {
		a.settings[k] = v
	}
}

func (a *API) listAdmins() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admins": a.admins.list()})
	}
}

func (a *API) createAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email       string `json:"email"`
			Username    string `json:"username"`
			Password    string `json:"password"`
			IsSuperuser bool   `json:"is_superuser"`
		}
		_ = c.ShouldBindJSON(&body)
		if body.Email == "" || body.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
			return
		}
		created, err := a.admins.create(body.Username, body.Email, body.Password, body.IsSuperuser)
		if errors.Is(err, errEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email already in use"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"id":           created.ID,
			"username":     created.Username,
			"email":        created.Email,
			"is_superuser": created.IsSuperuser,
		})
	}
}

func (a *API) deleteAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
			return
		}
		if id == currentAdmin(c).ID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot delete your own account"})
			return
		}
		if err := a.admins.delete(id); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Admin not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
