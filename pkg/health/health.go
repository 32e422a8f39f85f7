package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	pingTimeout = 2 * time.Second
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db    *gorm.DB
	redis *redis.Client
	minio *minio.Client
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
	Minio *minio.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:    p.DB,
		redis: p.Redis,
		minio: p.Minio,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  StatusHealthy,
		Message: "OK",
		Deps:    []Dependency{},
	})
}

// Readiness pings every configured dependency. Any failure turns the response into a 503.
func (h *health) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	deps := h.check(ctx)

	res := &Health{Status: StatusHealthy, Message: "OK", Deps: deps}
	code := http.StatusOK
	for _, d := range deps {
		if d.Status != StatusHealthy {
			res.Status = StatusUnhealthy
			res.Message = d.Name + " unavailable"
			code = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(code, res)
}

func (h *health) check(ctx context.Context) []Dependency {
	deps := make([]Dependency, 0, 3)

	if h.db != nil {
		deps = append(deps, probe(h.db.Name(), func() error {
			sqlDB, err := h.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}))
	}

	if h.redis != nil {
		deps = append(deps, probe("redis", func() error {
			return h.redis.Ping(ctx).Err()
		}))
	}

	if h.minio != nil {
		deps = append(deps, probe("minio", func() error {
			_, err := h.minio.ListBuckets(ctx)
			return err
		}))
	}

	return deps
}

func probe(name string, ping func() error) Dependency {
	if err := ping(); err != nil {
		return Dependency{Name: name, Status: StatusUnhealthy, Message: err.Error()}
	}
	return Dependency{Name: name, Status: StatusHealthy, Message: "OK"}
}
