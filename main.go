package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Concierge/agent/agents/booking"
	"github.com/tanpawarit/Chative-Concierge/agent/api"
	"github.com/tanpawarit/Chative-Concierge/agent/assign"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
	datetimex "github.com/tanpawarit/Chative-Concierge/agent/datetime"
	"github.com/tanpawarit/Chative-Concierge/agent/memory"
	"github.com/tanpawarit/Chative-Concierge/agent/notify"
	"github.com/tanpawarit/Chative-Concierge/agent/repository"
	schedulex "github.com/tanpawarit/Chative-Concierge/agent/schedule"
	statex "github.com/tanpawarit/Chative-Concierge/agent/state"
	configx "github.com/tanpawarit/Chative-Concierge/pkg/config"
	eventsx "github.com/tanpawarit/Chative-Concierge/pkg/events"
	_ "github.com/tanpawarit/Chative-Concierge/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/Chative-Concierge/pkg/openrouter"
	postgresx "github.com/tanpawarit/Chative-Concierge/pkg/postgres"
	qstashx "github.com/tanpawarit/Chative-Concierge/pkg/qstash"
)

type AppConfig struct {
	TenantsFile       string `envconfig:"TENANTS_FILE" default:"config/tenants.yaml"`
	ListenAddr        string `envconfig:"LISTEN_ADDR" default:":8080"`
	APIToken          string `envconfig:"API_TOKEN" required:"true"`
	SessionBackend    string `envconfig:"SESSION_BACKEND" default:"memory"`
	RepositoryBackend string `envconfig:"REPOSITORY_BACKEND" default:"memory"`
	MemoryEnabled     bool   `envconfig:"MEMORY_ENABLED" default:"false"`
	QStashEnabled     bool   `envconfig:"QSTASH_ENABLED" default:"false"`
	AssignURL         string `envconfig:"ASSIGN_URL"`
	EventsEnabled     bool   `envconfig:"EVENTS_ENABLED" default:"false"`
}

type repositories struct {
	bookings    contractx.BookingRepository
	assignments contractx.AssignmentRepository
	index       contractx.VectorIndex
	close       func() error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("concierge stopped")
	}
}

func run(ctx context.Context) error {
	appCfg := configx.MustNew[AppConfig]("")
	embeddingCfg := configx.MustNew[memory.EmbeddingConfig]("EMBEDDING")

	hours, err := schedulex.LoadHoursFile(appCfg.TenantsFile)
	if err != nil {
		return err
	}
	staff, err := repository.LoadStaffFile(appCfg.TenantsFile)
	if err != nil {
		return err
	}

	repos, err := openRepositories(ctx, appCfg.RepositoryBackend, embeddingCfg.Dimensions, staff)
	if err != nil {
		return err
	}
	defer repos.close()

	store, err := openSessionStore(appCfg.SessionBackend)
	if err != nil {
		return err
	}

	scheduler, err := schedulex.New(hours, repos.bookings)
	if err != nil {
		return err
	}

	deps := api.Deps{Token: appCfg.APIToken}
	var hooks []contractx.BookingHook

	if appCfg.QStashEnabled {
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		qstashClient := qstashx.MustNew(*qstashCfg)
		trigger, err := assign.NewQueueTrigger(qstashClient, appCfg.AssignURL)
		if err != nil {
			return err
		}
		hooks = append(hooks, trigger)
		deps.Verifier = qstashClient
		deps.AssignURL = appCfg.AssignURL
	}

	if appCfg.EventsEnabled {
		eventsCfg := configx.MustNew[eventsx.Config]("AMQP")
		publisher, err := eventsx.Dial(ctx, *eventsCfg)
		if err != nil {
			return err
		}
		defer publisher.Close()
		booked, err := notify.NewBookedEvents(publisher, eventsCfg.RoutingKey)
		if err != nil {
			return err
		}
		hooks = append(hooks, booked)
	}

	if appCfg.MemoryEnabled {
		openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
		openRouterClient := openrouterx.NewClient(*openRouterCfg)
		if openRouterClient == nil {
			return fmt.Errorf("%w: openrouter api key is required for memory", contractx.ErrConfiguration)
		}
		embedder, err := memory.NewOpenAIEmbedder(openRouterClient, *embeddingCfg)
		if err != nil {
			return err
		}
		memories, err := memory.New(embedder, repos.index)
		if err != nil {
			return err
		}
		deps.Memories = memories
		recorder, err := notify.NewInterestRecorder(memories)
		if err != nil {
			return err
		}
		hooks = append(hooks, recorder)
	}

	orchestrator, err := booking.New(store, datetimex.New(), scheduler, repos.bookings, booking.WithHooks(hooks...))
	if err != nil {
		return err
	}
	deps.Concierge = orchestrator

	balancer, err := assign.New(repos.assignments)
	if err != nil {
		return err
	}
	runner, err := assign.NewRunner(balancer, hours, *configx.MustNew[assign.RunnerConfig]("BALANCER"))
	if err != nil {
		return err
	}
	deps.Assign = runner
	runner.Start()

	srv := &http.Server{
		Addr:              appCfg.ListenAddr,
		Handler:           api.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", appCfg.ListenAddr).Strs("tenants", hours.Tenants()).Msg("concierge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	runner.Stop(shutdownCtx)
	log.Info().Msg("concierge stopped")
	return nil
}

func openRepositories(ctx context.Context, backend string, dims int, staff []repository.Staff) (*repositories, error) {
	switch backend {
	case "memory":
		repo := repository.NewMemory()
		repo.AddStaff(staff...)
		return &repositories{
			bookings:    repo,
			assignments: repo,
			index:       memory.NewInMemoryIndex(),
			close:       func() error { return nil },
		}, nil
	case "postgres":
		pgCfg := configx.MustNew[postgresx.Config]("POSTGRES")
		db, err := postgresx.Connect(ctx, *pgCfg)
		if err != nil {
			return nil, err
		}
		if err := repository.Migrate(ctx, db, dims); err != nil {
			db.Close()
			return nil, err
		}
		repo := repository.NewPostgres(db)
		if err := repo.AddStaff(ctx, staff...); err != nil {
			db.Close()
			return nil, err
		}
		return &repositories{
			bookings:    repo,
			assignments: repo,
			index:       repo,
			close:       db.Close,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown repository backend %q", contractx.ErrConfiguration, backend)
	}
}

func openSessionStore(backend string) (statex.Store, error) {
	switch backend {
	case "memory":
		return statex.NewMemoryStore(), nil
	case "upstash":
		cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		return statex.NewUpstashRedisStore(*cfg)
	default:
		return nil, fmt.Errorf("%w: unknown session backend %q", contractx.ErrConfiguration, backend)
	}
}
