package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/agents/specialist"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/audit"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/booking"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/llm"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/metrics"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/persona"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/prompt"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/router"
	statex "github.com/tanpawarit/Chative-Dealership-Assistant/agent/state"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/tool"
	"github.com/tanpawarit/Chative-Dealership-Assistant/agent/transport/httpapi"
	configx "github.com/tanpawarit/Chative-Dealership-Assistant/pkg/config"
	_ "github.com/tanpawarit/Chative-Dealership-Assistant/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/Chative-Dealership-Assistant/pkg/openrouter"
	postgresx "github.com/tanpawarit/Chative-Dealership-Assistant/pkg/postgres"
	qstashx "github.com/tanpawarit/Chative-Dealership-Assistant/pkg/qstash"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

type StoreConfig struct {
	Backend   string `default:"memory"`
	CacheSize int    `split_words:"true" default:"4096"`
}

type SupportConfig struct {
	Backend string `default:"log"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("dealership assistant stopped")
	}
}

func run(ctx context.Context) error {
	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	routerCfg := configx.MustNew[router.Config]("ROUTER")
	driverCfg := configx.MustNew[specialist.Config]("DRIVER")
	inboxCfg := configx.MustNew[tool.InboxConfig]("INBOX")
	searchCfg := configx.MustNew[tool.SearchConfig]("SEARCH")
	dealerCfg := configx.MustNew[tool.DealershipConfig]("DEALERSHIP")
	hoursCfg := configx.MustNew[booking.HoursConfig]("HOURS")
	storeCfg := configx.MustNew[StoreConfig]("STORE")
	supportCfg := configx.MustNew[SupportConfig]("SUPPORT")
	pgCfg := configx.MustNew[postgresx.Config]("POSTGRES")
	httpCfg := configx.MustNew[httpapi.Config]("HTTP")

	hours, err := hoursCfg.Build()
	if err != nil {
		return err
	}

	var db *bun.DB
	if pgCfg.Enabled() {
		db, err = postgresx.Open(ctx, *pgCfg)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	store, err := buildStore(ctx, *storeCfg, db)
	if err != nil {
		return err
	}
	notifier, err := buildNotifier(*supportCfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	meter := metrics.New(reg)

	ledger, err := buildLedger(ctx, db)
	if err != nil {
		return err
	}

	inbox, err := tool.NewInboxClient(*inboxCfg, nil)
	if err != nil {
		return err
	}
	searcher, err := tool.NewProductSearcher(*searchCfg, nil)
	if err != nil {
		return err
	}
	tools, err := tool.NewRegistry([]tool.Tool{
		tool.NewShowDirectionsTool(*dealerCfg),
		tool.NewCreateTicketTool(inbox),
		tool.NewCreateAppointmentTool(inbox),
		tool.NewSearchProductsTool(searcher),
		tool.NewConnectSupportTool(notifier, hours, time.Now),
		tool.NewRecordCustomerTool(hours, time.Now),
	}, tool.WithRecorder(audit.NewRecorder(ledger)), tool.WithRecorder(meter))
	if err != nil {
		return err
	}

	manifest, err := persona.ParseManifest(prompt.Manifest())
	if err != nil {
		return err
	}
	personas, err := persona.Build(manifest, tools, prompt.Template)
	if err != nil {
		return err
	}

	var modelClassifier contractx.Classifier
	if routerCfg.Classifier == router.ClassifierModel {
		mc, err := buildModelClassifier(*llmCfg, dealerCfg.Name, personas)
		if err != nil {
			return err
		}
		modelClassifier = mc
	}
	turnRouter, err := router.New(*routerCfg, personas, modelClassifier)
	if err != nil {
		return err
	}

	runner, err := specialist.New(ctx, *driverCfg, personas,
		llm.NewFactory(*llmCfg, nil), tools,
		persona.Renderer{DealershipName: dealerCfg.Name, Location: hours.Location},
		hours,
	)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(store, turnRouter, runner, orchestrator.WithObserver(meter))
	if err != nil {
		return err
	}

	srv := httpapi.NewServer(*httpCfg, orch, reg).HTTPServer()

	log.Info().
		Str("addr", srv.Addr).
		Str("policy", string(turnRouter.Policy())).
		Str("store", storeCfg.Backend).
		Strs("personas", personas.Names()).
		Msg("dealership assistant ready")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildStore(ctx context.Context, cfg StoreConfig, db *bun.DB) (statex.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return statex.NewMemoryStore(cfg.CacheSize)
	case "upstash":
		redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		return statex.NewUpstashRedisStore(*redisCfg)
	case "postgres":
		if db == nil {
			return nil, errors.New("STORE_BACKEND=postgres requires POSTGRES_DSN")
		}
		pg, err := statex.NewPostgresStore(db)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Backend)
	}
}

func buildNotifier(cfg SupportConfig) (tool.Notifier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "log":
		return tool.LogNotifier{}, nil
	case "qstash":
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		client, err := qstashx.NewClient(*qstashCfg)
		if err != nil {
			return nil, err
		}
		return tool.NewQueueNotifier(client), nil
	default:
		return nil, fmt.Errorf("unknown SUPPORT_BACKEND %q", cfg.Backend)
	}
}

func buildLedger(ctx context.Context, db *bun.DB) (audit.Ledger, error) {
	if db == nil {
		return audit.LogLedger{}, nil
	}
	ledger, err := audit.NewPostgresLedger(db)
	if err != nil {
		return nil, err
	}
	if err := ledger.Migrate(ctx); err != nil {
		return nil, err
	}
	return ledger, nil
}

func buildModelClassifier(cfg llm.Config, dealershipName string, personas *persona.Registry) (*router.ModelClassifier, error) {
	clsCfg := cfg.Classifier()
	client := openrouterx.NewClient(clsCfg)
	if client == nil {
		return nil, errors.New("model classifier requires OPENROUTER_API_KEY")
	}
	template, err := prompt.Template(prompt.ClassifierName)
	if err != nil {
		return nil, err
	}
	return router.NewModelClassifier(client, clsCfg.Model, clsCfg.Temperature, template, dealershipName, personas)
}
