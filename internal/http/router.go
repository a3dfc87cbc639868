// Package httpapi wires the HTTP transport (Gin) to the bot: middleware for
// tracing, correlation IDs, logging, recovery, metrics, and rate limiting,
// plus the webhook endpoint the chat platform pushes updates into and the
// ops endpoints (/healthz, /metrics).
//
// Design goals:
//   - Observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/finishworks/crewbot/internal/bot"
	"github.com/finishworks/crewbot/internal/chat"
	"github.com/finishworks/crewbot/internal/config"
	"github.com/finishworks/crewbot/internal/domain"
	"github.com/finishworks/crewbot/internal/http/middleware"
	"github.com/finishworks/crewbot/internal/materials"
	"github.com/finishworks/crewbot/internal/repo"
	"github.com/finishworks/crewbot/internal/services"
	"github.com/finishworks/crewbot/internal/storage"
)

// userRepoShim adapts the repository free functions to the services.UserRepo
// interface. This keeps services decoupled from the concrete repo package
// while reusing existing functions.
type userRepoShim struct{}

func (userRepoShim) UpsertUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return repo.UpsertUser(ctx, db, u)
}

func (userRepoShim) GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

func (userRepoShim) UpdateUserRole(ctx context.Context, db *gorm.DB, id int64, role domain.Role) error {
	return repo.UpdateUserRole(ctx, db, id, role)
}

func (userRepoShim) MarkAccessRequested(ctx context.Context, db *gorm.DB, id int64) error {
	return repo.MarkAccessRequested(ctx, db, id)
}

func (userRepoShim) ListUsersByRole(ctx context.Context, db *gorm.DB, role domain.Role) ([]domain.User, error) {
	return repo.ListUsersByRole(ctx, db, role)
}

// projectRepoShim adapts repo free functions to services.ProjectRepo.
type projectRepoShim struct{}

func (projectRepoShim) CreateProject(ctx context.Context, db *gorm.DB, p *domain.Project) (*domain.Project, error) {
	return repo.CreateProject(ctx, db, p)
}

func (projectRepoShim) ListProjects(ctx context.Context, db *gorm.DB) ([]domain.Project, error) {
	return repo.ListProjects(ctx, db)
}

func (projectRepoShim) GetProject(ctx context.Context, db *gorm.DB, id uint) (*domain.Project, error) {
	return repo.GetProject(ctx, db, id)
}

func (projectRepoShim) FindProjectByAddress(ctx context.Context, db *gorm.DB, address string) (*domain.Project, error) {
	return repo.FindProjectByAddress(ctx, db, address)
}

// calcRepoShim adapts repo free functions to services.CalculationRepo.
type calcRepoShim struct{}

func (calcRepoShim) CreateCalculation(ctx context.Context, db *gorm.DB, c *domain.Calculation) (*domain.Calculation, error) {
	return repo.CreateCalculation(ctx, db, c)
}

func (calcRepoShim) LinkCalculationToProject(ctx context.Context, db *gorm.DB, calcID, projectID uint) error {
	return repo.LinkCalculationToProject(ctx, db, calcID, projectID)
}

func (calcRepoShim) ListCalculationsForProjectByUser(ctx context.Context, db *gorm.DB, projectID uint, userID int64) ([]domain.Calculation, error) {
	return repo.ListCalculationsForProjectByUser(ctx, db, projectID, userID)
}

// messageRepoShim adapts repo free functions to services.MessageRepo.
type messageRepoShim struct{}

func (messageRepoShim) CreateMessage(ctx context.Context, db *gorm.DB, senderID, recipientID int64, text string) (*domain.Message, error) {
	return repo.CreateMessage(ctx, db, senderID, recipientID, text)
}

func (messageRepoShim) ListMessagesByRecipient(ctx context.Context, db *gorm.DB, recipientID int64, limit int) ([]domain.Message, error) {
	return repo.ListMessagesByRecipient(ctx, db, recipientID, limit)
}

// RegisterRoutes attaches middleware and endpoints to the Gin engine, builds
// the service graph on top of db, and mounts the webhook dispatcher.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per client IP)
//  8. Gzip + CORS for the ops endpoints
func RegisterRoutes(r *gin.Engine, db *gorm.DB, sender chat.Sender, downloader chat.Downloader, files *storage.FileStore, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB covers any update payload)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 8) Compression and CORS posture for the ops endpoints
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	if len(cfg.CORSAllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": "method_not_allowed", "message": "method not allowed"})
	})

	// Liveness/health
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/chat
	menus := bot.Menus{}
	access := &services.AccessService{
		DB:       db,
		Repo:     userRepoShim{},
		AdminIDs: cfg.AdminIDs,
		Sender:   sender,
		Menus:    menus,
	}
	projects := &services.ProjectService{DB: db, Repo: projectRepoShim{}}
	calculator := materials.NewCalculator(cfg.SafetyFactor)
	calcs := &services.CalculationService{DB: db, Repo: calcRepoShim{}, Calc: calculator}
	messages := &services.MessageService{DB: db, Repo: messageRepoShim{}, AdminIDs: cfg.AdminIDs, Sender: sender}
	broadcasts := &services.BroadcastService{Sender: sender}

	router := bot.New(bot.Deps{
		Sender:     sender,
		Downloader: downloader,
		Files:      files,
		Calculator: calculator,
		Access:     access,
		Projects:   projects,
		Calcs:      calcs,
		Messages:   messages,
		Broadcasts: broadcasts,
	})

	r.POST("/webhook", webhookHandler(db, router, cfg.UpdateDedupTTL))
}

// webhookHandler ingests one platform update. Responses are always 200 for
// well-formed payloads so the platform never retries an update the bot chose
// to drop; processing failures are reported to the user in-band instead.
func webhookHandler(db *gorm.DB, router *bot.Router, dedupTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in chat.Inbound
		if err := c.ShouldBindJSON(&in); err != nil {
			middleware.CountUpdate(middleware.UpdateRejected)
			c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "malformed update"})
			return
		}
		if in.UserID == 0 {
			middleware.CountUpdate(middleware.UpdateRejected)
			c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "missing user id"})
			return
		}

		// Drop platform redeliveries before they replay into a dialogue.
		if in.UpdateID != 0 {
			fresh, err := repo.MarkUpdateProcessed(c.Request.Context(), db, in.UpdateID, dedupTTL)
			if err != nil {
				// Dedup bookkeeping must not lose updates; process anyway.
				middleware.LoggerFrom(c).Warn().Err(err).Int64("update_id", in.UpdateID).Msg("update dedup check failed")
			} else if !fresh {
				middleware.CountUpdate(middleware.UpdateDuplicate)
				c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
				return
			}
		}

		router.HandleUpdate(c.Request.Context(), in)
		middleware.CountUpdate(middleware.UpdateHandled)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; oversized bodies error on read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
