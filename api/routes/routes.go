package routes

import (
	"time"

	"fitzone/api/handler"
	"fitzone/api/middleware"
	"fitzone/internal/entity"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type Router struct {
	Echo           *echo.Echo
	User           *handler.AuthHandler
	Admin          *handler.AuthHandler
	AdminViews     *handler.AdminHandler
	Health         *handler.HealthHandler
	AuthMiddleware middleware.AuthMiddleware
	Gatherer       prometheus.Gatherer
	AuthRate       *middleware.RateLimiter
	LoginRate      *middleware.RateLimiter
}

func NewRouter(
	e *echo.Echo,
	user *handler.AuthHandler,
	admin *handler.AuthHandler,
	adminViews *handler.AdminHandler,
	health *handler.HealthHandler,
	authMiddleware middleware.AuthMiddleware,
	gatherer prometheus.Gatherer,
) *Router {
	return &Router{
		Echo:           e,
		User:           user,
		Admin:          admin,
		AdminViews:     adminViews,
		Health:         health,
		AuthMiddleware: authMiddleware,
		Gatherer:       gatherer,
		AuthRate:       middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:      middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.GET("/api/health", r.Health.Health)
	if r.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{})))
	}

	users := e.Group("/api/auth")
	r.registerAccountRoutes(users, r.User, entity.RoleUser)
	userAuth := []echo.MiddlewareFunc{r.AuthMiddleware.RequireAuth, middleware.RequireRole(entity.RoleUser)}
	users.GET("/me", r.User.Me, userAuth...)
	users.GET("/users/:id", r.User.GetByID, userAuth...)
	users.PUT("/users/:id", r.User.UpdateByID, userAuth...)
	users.DELETE("/users/:id", r.User.DeleteByID, userAuth...)

	admins := e.Group("/api/admin")
	r.registerAccountRoutes(admins, r.Admin, entity.RoleAdmin)
	adminAuth := []echo.MiddlewareFunc{r.AuthMiddleware.RequireAuth, middleware.RequireRole(entity.RoleAdmin)}
	admins.GET("/profile", r.Admin.Me, adminAuth...)
	admins.PUT("/profile", r.Admin.UpdateProfile, adminAuth...)
	admins.GET("/users", r.AdminViews.ListUsers, adminAuth...)
	admins.PUT("/users/:id", r.AdminViews.UpdateUser, adminAuth...)
	admins.DELETE("/users/:id", r.AdminViews.DeleteUser, adminAuth...)
}

func (r *Router) registerAccountRoutes(g *echo.Group, h *handler.AuthHandler, role entity.Role) {
	g.POST("/register", h.Register, r.AuthRate.Middleware())
	g.POST("/login", h.Login, r.LoginRate.Middleware())
	g.POST("/verify-otp", h.VerifyOTP, r.AuthRate.Middleware())
	g.POST("/request-otp", h.RequestOTP, r.LoginRate.Middleware())
	g.POST("/resend-otp", h.ResendOTP, r.LoginRate.Middleware())
	g.POST("/forgot-password", h.ForgotPassword, r.LoginRate.Middleware())
	g.POST("/verify-reset-otp", h.VerifyResetOTP, r.AuthRate.Middleware())
	g.POST("/reset-password", h.ResetPassword, r.AuthRate.Middleware())
	g.PUT("/change-password", h.ChangePassword, r.AuthMiddleware.RequireAuth, middleware.RequireRole(role))
}
