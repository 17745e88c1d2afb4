package fakeapi

import (
	"github.com/gin-gonic/gin"
)

const adminKey = "fakeapi_admin"

func (a *API) initRoutes(g *gin.RouterGroup) {
	g.GET("/", a.root())
	g.GET("/health/", a.health())

	g.POST("/login/", a.login())
	g.POST("/token/refresh/", a.refresh())
	g.POST("/admin/otp/request/", a.otpRequest())
	g.POST("/admin/otp/verify/", a.otpVerify())
	g.POST("/admin/otp/confirm/", a.otpConfirm())

	auth := a.requireAuth()

	g.GET("/motorcycles/featured/", a.featured())
	a.registerCatalog(g, "/motorcycles/", "id", a.motorcycles, motorcycleSchema, auth)
	a.registerGallery(g, "/motorcycles/", "motorcycles", a.motorcycles, auth)

	g.GET("/parts/categories/", a.listHandler("/parts/categories/", a.partCats, nil))
	a.registerCatalog(g, "/parts/", "id", a.parts, partSchema, auth)
	a.registerGallery(g, "/parts/", "parts", a.parts, auth)

	g.GET("/blog/categories/", a.listHandler("/blog/categories/", a.blogCats, nil))
	a.registerCatalog(g, "/blog/posts/", "slug", a.posts, postSchema, auth)
	g.POST("/blog/posts/:slug/upload_image/", auth, a.uploadPostImage())
	g.DELETE("/blog/posts/:slug/delete_image/", auth, a.deletePostImage())

	g.GET("/garage/settings/", a.getSettings())
	g.PUT("/garage/settings/", auth, a.putSettings())

	super := g.Group("/superadmin", auth, a.requireSuperuser())
	super.GET("/admins/", a.listAdmins())
	super.POST("/admins/create/", a.createAdmin())
	super.DELETE("/admins/:id/", a.deleteAdmin())
}
