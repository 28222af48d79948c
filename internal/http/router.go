package http

import (
	"log/slog"
	"time"

	"github.com/geocoder89/casehub/internal/config"
	"github.com/geocoder89/casehub/internal/domain/user"
	"github.com/geocoder89/casehub/internal/http/handlers"
	"github.com/geocoder89/casehub/internal/http/middlewares"
	"github.com/geocoder89/casehub/internal/observability"
	"github.com/geocoder89/casehub/internal/throttle"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Users is what the router needs from the user store: profile reads and
// writes plus the active-flag lookup done on every session request.
type Users interface {
	handlers.UserStore
	middlewares.UserLookup
}

// Auth is the authentication service surface used by the HTTP layer.
type Auth interface {
	handlers.AuthService
	handlers.CredentialService
}

type Deps struct {
	Log     *slog.Logger
	Cfg     config.Config
	Prom    *observability.Prom
	Metrics prometheus.Gatherer
	Tokens  middlewares.TokenVerifier
	Auth    Auth
	Users   Users
	Cases   handlers.CasesRepo
	Limiter throttle.Limiter
	Checks  map[string]handlers.Pinger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" && d.Cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Limiter == nil {
		d.Limiter = throttle.NewMemoryLimiter()
	}

	r := gin.New()

	// middleware
	r.Use(middlewares.Recovery(d.Log))
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("casehub"))
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(d.Cfg.IsProd()))
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSOrigins))
	maxBody := d.Cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(middlewares.MaxBodyBytes(maxBody))
	r.Use(middlewares.RequireJSON())

	// health + metrics
	health := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	}

	am := middlewares.NewAuthMiddleware(d.Tokens, d.Users, 30*time.Second)

	sendPerMinute := d.Cfg.SendOTPPerMinute
	if sendPerMinute <= 0 {
		sendPerMinute = 3
	}
	sendByMobile := middlewares.NewRateLimiter(d.Limiter, "send_otp_mobile", sendPerMinute, time.Minute)
	sendByIP := middlewares.NewRateLimiter(d.Limiter, "send_otp_ip", sendPerMinute*10, time.Minute)
	loginByIP := middlewares.NewRateLimiter(d.Limiter, "login_ip", 30, time.Minute)
	loginByMobile := middlewares.NewRateLimiter(d.Limiter, "login_mobile", 10, time.Minute)
	pinByIP := middlewares.NewRateLimiter(d.Limiter, "pin_login_ip", 30, time.Minute)
	pinByUser := middlewares.NewRateLimiter(d.Limiter, "pin_login_user", 10, time.Minute)
	changePIN := middlewares.NewRateLimiter(d.Limiter, "change_pin", 10, time.Minute)

	authHandler := handlers.NewAuthHandler(d.Auth, d.Log)
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/send-otp",
			sendByIP.Middleware(middlewares.KeyByIP),
			sendByMobile.Middleware(middlewares.KeyByMobile),
			authHandler.SendOTP,
		)
		authGroup.POST("/login",
			loginByIP.Middleware(middlewares.KeyByIP),
			loginByMobile.Middleware(middlewares.KeyByMobile),
			authHandler.Login,
		)
		authGroup.POST("/pin-login",
			pinByIP.Middleware(middlewares.KeyByIP),
			am.RequireVerification(),
			pinByUser.Middleware(middlewares.KeyByUserOrIP),
			authHandler.PINLogin,
		)
	}

	usersHandler := handlers.NewUsersHandler(d.Users, d.Auth, d.Log, am.Forget)
	users := r.Group("/users", am.RequireSession())
	{
		users.GET("/profile", usersHandler.GetProfile)
		users.PUT("/profile", usersHandler.UpdateProfile)
		users.PUT("/change-pin", changePIN.Middleware(middlewares.KeyByUserOrIP), usersHandler.ChangePIN)

		users.POST("", am.RequireRole(user.RoleAdmin), usersHandler.CreateUser)
		users.PUT("/:id/status", am.RequireRole(user.RoleAdmin), usersHandler.UpdateStatus)
	}

	casesHandler := handlers.NewCasesHandler(d.Cases, d.Log)
	cases := r.Group("/cases", am.RequireSession())
	{
		cases.GET("", casesHandler.ListCases)
		cases.POST("", casesHandler.CreateCase)
		cases.GET("/:id", casesHandler.GetCase)
		cases.PUT("/:id", casesHandler.UpdateCase)
		cases.POST("/:id/hearings", casesHandler.AddHearing)
		cases.PUT("/:id/hearings/:hearingId/status", casesHandler.UpdateHearingStatus)
		cases.POST("/:id/documents", casesHandler.AddDocument)
		cases.POST("/:id/notes", casesHandler.AddNote)
	}

	return r
}
