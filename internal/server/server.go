package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/notegraph/backend/internal/queue"
	mid "github.com/notegraph/backend/internal/server/middleware"
	"github.com/notegraph/backend/internal/storage"
	"github.com/notegraph/backend/internal/util"
	"github.com/notegraph/backend/pkg/graph"
	"github.com/notegraph/backend/pkg/logger"
	"github.com/notegraph/backend/pkg/query"
	"github.com/notegraph/backend/pkg/service"

	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graphStore, err := storage.NewGraphStore(ctx)
	if err != nil {
		logger.Fatal("Failed to create graph store", "err", err)
	}
	defer graphStore.Close(context.Background())

	graphClient := graph.NewGraphClient(graph.NewGraphClientParams{
		MergeThreshold: util.GetEnvNumeric("MERGE_THRESHOLD", 0),
		LabelWeight:    util.GetEnvNumeric("LABEL_WEIGHT", 0),
		PropertyWeight: util.GetEnvNumeric("PROPERTY_WEIGHT", 0),
		ParallelDocs:   int(util.GetEnvNumeric("PARALLEL_DOCS", 0)),
		TypeAliases:    graph.ParseTypeAliases(util.GetEnvString("TYPE_ALIASES", "")),
	})
	queryClient := query.NewQueryClient(query.NewQueryClientParams{Store: graphStore})
	svc := service.NewGraphService(service.NewGraphServiceParams{
		Store: graphStore,
		Graph: graphClient,
		Query: queryClient,
	})

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	e.Use(mid.AppContextMiddleware(&mid.App{
		Service: svc,
		Queue:   ch,
	}))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
