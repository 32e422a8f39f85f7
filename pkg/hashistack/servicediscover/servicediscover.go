package servicediscover

import (
	"context"
	"fmt"
	"os"

	"knowledge-ledger/pkg/config"

	"github.com/hashicorp/consul/api"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("servicediscover",
	fx.Provide(NewRegistry),
	fx.Invoke(registerConsul),
)

type ServiceRegistry interface {
	Register(ctx context.Context) error
	Deregister(ctx context.Context) error
}

type ConsulRegistry struct {
	client    *api.Client
	serviceID string
	service   *api.AgentServiceRegistration
}

// Registration describes this instance to Consul, with an HTTP check on the readiness probe.
func Registration(cfg *config.Config) *api.AgentServiceRegistration {
	id := cfg.Consul.ServiceID
	if id == "" {
		host, _ := os.Hostname()
		id = fmt.Sprintf("%s-%s", cfg.AppName, host)
	}

	return &api.AgentServiceRegistration{
		ID:      id,
		Name:    cfg.AppName,
		Address: cfg.Consul.Host,
		Port:    cfg.Consul.Port,
		Tags:    []string{cfg.AppEnv, "version=" + cfg.AppVersion},
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health/readiness", cfg.Consul.Host, cfg.Consul.Port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

// NewRegistry returns nil when CONSUL.ADDR is unset.
func NewRegistry(cfg *config.Config) (ServiceRegistry, error) {
	if cfg.Consul.Addr == "" {
		return nil, nil
	}

	c := api.DefaultConfig()
	c.Address = cfg.Consul.Addr

	client, err := api.NewClient(c)
	if err != nil {
		return nil, err
	}

	service := Registration(cfg)
	return &ConsulRegistry{
		client:    client,
		serviceID: service.ID,
		service:   service,
	}, nil
}

func (r *ConsulRegistry) Register(ctx context.Context) error {
	return r.client.Agent().ServiceRegisterOpts(r.service, api.ServiceRegisterOpts{}.WithContext(ctx))
}

func (r *ConsulRegistry) Deregister(ctx context.Context) error {
	return r.client.Agent().ServiceDeregisterOpts(r.serviceID, (&api.QueryOptions{}).WithContext(ctx))
}

func registerConsul(lc fx.Lifecycle, registry ServiceRegistry) {
	if registry == nil {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := registry.Register(ctx); err != nil {
				zap.L().Error("failed to register with consul", zap.Error(err))
				return err
			}
			zap.L().Info("registered with consul")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := registry.Deregister(ctx); err != nil {
				zap.L().Warn("failed to deregister from consul", zap.Error(err))
			}
			return nil
		},
	})
}
