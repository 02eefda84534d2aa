// Package app wires configuration into a ready-to-serve handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"grocer-agent/handler"
	"grocer-agent/internal/config"
	"grocer-agent/internal/integrations/gemini"
	"grocer-agent/internal/integrations/openai"
	"grocer-agent/internal/integrations/paramstore"
	"grocer-agent/internal/integrations/zeroshot"
	"grocer-agent/internal/metrics"
	"grocer-agent/internal/repository"
	"grocer-agent/internal/repository/memstore"
	"grocer-agent/internal/repository/mongostore"
	"grocer-agent/internal/usecase"
)

// Secret parameter names, relative to PARAM_PREFIX.
const (
	paramOpenAIKey     = "openai-api-key"
	paramGeminiKey     = "gemini-api-key"
	paramZeroShotToken = "zeroshot-token"
)

type App struct {
	Handler *handler.Handler
	Metrics *metrics.Metrics

	closers []func(context.Context) error
}

// Close releases backend connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

type stores struct {
	history usecase.HistoryStore
	lists   usecase.ShoppingListStore
	prefs   usecase.PreferenceStore
	close   func(context.Context) error
}

type builder struct {
	cfg    *config.Config
	logger *slog.Logger

	aws    *aws.Config
	params paramstore.Getter
}

// Build constructs every collaborator named by cfg. AWS configuration is
// only loaded when DynamoDB or SSM is in use.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &builder{cfg: cfg, logger: logger}
	return b.build(ctx)
}

func (b *builder) build(ctx context.Context) (*App, error) {
	a := &App{Metrics: metrics.New()}

	params, err := b.paramGetter(ctx)
	if err != nil {
		return nil, err
	}
	b.params = params

	st, err := b.stores(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)

	policy := usecase.RetryPolicy{
		MaxAttempts:     b.cfg.Retry.MaxAttempts,
		InitialInterval: b.cfg.Retry.InitialInterval,
		MaxInterval:     b.cfg.Retry.MaxInterval,
		OnRetry:         a.Metrics.OnRetry,
	}

	model, moderator, err := b.model()
	if err != nil {
		return nil, b.fail(ctx, a, err)
	}
	textGen := usecase.NewRetryingGenerator(model, policy)

	generation, err := usecase.NewGenerationService(textGen, moderator, b.logger)
	if err != nil {
		return nil, b.fail(ctx, a, err)
	}
	classifier, err := b.classifier(textGen, policy)
	if err != nil {
		return nil, b.fail(ctx, a, err)
	}
	prefExtractor, err := b.preferenceExtractor(textGen)
	if err != nil {
		return nil, b.fail(ctx, a, err)
	}
	prefs, err := usecase.NewPreferenceService(st.prefs, prefExtractor, b.logger)
	if err != nil {
		return nil, b.fail(ctx, a, err)
	}
	shopping, err := usecase.NewShoppingListService(st.lists, b.logger)
	if err != nil {
		return nil, b.fail(ctx, a, err)
	}
	ingredients, err := usecase.NewIngredientExtractor(textGen, b.logger)
	if err != nil {
		return nil, b.fail(ctx, a, err)
	}

	chat, err := usecase.NewChatService(usecase.ChatDeps{
		Classifier:       classifier,
		Preferences:      prefs,
		History:          st.history,
		Generator:        generation,
		Extractor:        ingredients,
		Shopping:         shopping,
		Observer:         a.Metrics,
		Logger:           b.logger,
		HistoryLimit:     b.cfg.Chat.HistoryLimit,
		MaxMessageLength: b.cfg.Chat.MaxMessageLength,
	})
	if err != nil {
		return nil, b.fail(ctx, a, err)
	}

	h, err := handler.NewHandler(chat, prefs, shopping,
		handler.WithBasePath(b.cfg.Server.BasePath),
		handler.WithLogger(b.logger),
		handler.WithMetrics(a.Metrics),
		handler.WithCORS(b.cfg.CORS),
	)
	if err != nil {
		return nil, b.fail(ctx, a, err)
	}
	a.Handler = h

	b.logger.Info("app built",
		slog.String("store", b.cfg.Store.Backend),
		slog.String("llm_provider", b.cfg.LLM.Provider),
		slog.String("classifier", b.cfg.Classifier.Backend),
		slog.String("preference_extractor", b.cfg.Preferences.Extractor),
	)
	return a, nil
}

func (b *builder) fail(ctx context.Context, a *App, err error) error {
	if cerr := a.Close(ctx); cerr != nil {
		b.logger.Warn("close after failed build", "err", cerr)
	}
	return err
}

func (b *builder) awsConfig(ctx context.Context) (aws.Config, error) {
	if b.aws != nil {
		return *b.aws, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("app: load aws config: %w", err)
	}
	b.aws = &cfg
	return cfg, nil
}

// paramGetter reads secrets from SSM under PARAM_PREFIX, or from the
// environment-backed config fields when no prefix is set.
func (b *builder) paramGetter(ctx context.Context) (paramstore.Getter, error) {
	if strings.TrimSpace(b.cfg.Params.Prefix) == "" {
		return paramstore.Static{
			paramOpenAIKey:     b.cfg.Params.OpenAIKey,
			paramGeminiKey:     b.cfg.Params.GeminiKey,
			paramZeroShotToken: b.cfg.Params.ZeroShotToken,
		}, nil
	}
	awsCfg, err := b.awsConfig(ctx)
	if err != nil {
		return nil, err
	}
	client, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: ssm client: %w", err)
	}
	return client, nil
}

func (b *builder) paramName(name string) string {
	prefix := strings.TrimRight(strings.TrimSpace(b.cfg.Params.Prefix), "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (b *builder) stores(ctx context.Context) (stores, error) {
	switch strings.ToLower(b.cfg.Store.Backend) {
	case config.StoreMemory:
		s := memstore.New()
		return stores{history: s, lists: s, prefs: s, close: s.Close}, nil
	case config.StoreMongo:
		s, err := mongostore.Connect(ctx, b.cfg.Store.MongoURI, b.cfg.Store.MongoDB)
		if err != nil {
			return stores{}, fmt.Errorf("app: mongo: %w", err)
		}
		return stores{history: s, lists: s, prefs: s, close: s.Close}, nil
	case config.StoreDynamoDB:
		awsCfg, err := b.awsConfig(ctx)
		if err != nil {
			return stores{}, err
		}
		s, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), b.cfg.Store.TableName,
			repository.WithHistoryTTL(b.cfg.Store.HistoryTTL))
		if err != nil {
			return stores{}, fmt.Errorf("app: dynamodb: %w", err)
		}
		return stores{history: s, lists: s, prefs: s, close: func(context.Context) error { return nil }}, nil
	default:
		return stores{}, fmt.Errorf("app: unknown store backend %q", b.cfg.Store.Backend)
	}
}

func (b *builder) model() (usecase.TextGenerator, usecase.Moderator, error) {
	llm := b.cfg.LLM
	switch strings.ToLower(llm.Provider) {
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithTemperature(llm.Temperature)}
		if llm.Model != "" {
			opts = append(opts, openai.WithModel(llm.Model))
		}
		if llm.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llm.BaseURL))
		}
		c, err := openai.NewClient(b.params, b.paramName(paramOpenAIKey), opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("app: openai: %w", err)
		}
		if llm.Moderation {
			return c, c, nil
		}
		return c, nil, nil
	case config.ProviderGemini:
		opts := []gemini.Option{
			gemini.WithTemperature(float32(llm.Temperature)),
			gemini.WithMaxOutputTokens(llm.MaxTokens),
		}
		if llm.Model != "" {
			opts = append(opts, gemini.WithModel(llm.Model))
		}
		c, err := gemini.NewClient(b.params, b.paramName(paramGeminiKey), opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("app: gemini: %w", err)
		}
		return c, nil, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown llm provider %q", llm.Provider)
	}
}

func (b *builder) classifier(textGen usecase.TextGenerator, policy usecase.RetryPolicy) (usecase.Classifier, error) {
	switch strings.ToLower(b.cfg.Classifier.Backend) {
	case config.ClassifierPrompt:
		return usecase.NewPromptClassifier(textGen, b.logger)
	case config.ClassifierZeroShot:
		opts := []zeroshot.Option{zeroshot.WithModel(b.cfg.Classifier.Model)}
		if b.cfg.Classifier.BaseURL != "" {
			opts = append(opts, zeroshot.WithBaseURL(b.cfg.Classifier.BaseURL))
		}
		c, err := zeroshot.NewClient(b.params, b.paramName(paramZeroShotToken), opts...)
		if err != nil {
			return nil, fmt.Errorf("app: zeroshot: %w", err)
		}
		return usecase.NewZeroShotClassifier(usecase.NewRetryingScorer(c, policy), b.logger)
	default:
		return nil, fmt.Errorf("app: unknown classifier backend %q", b.cfg.Classifier.Backend)
	}
}

func (b *builder) preferenceExtractor(textGen usecase.TextGenerator) (usecase.PreferenceExtractor, error) {
	switch strings.ToLower(b.cfg.Preferences.Extractor) {
	case config.ExtractorKeyword:
		return usecase.KeywordExtractor{}, nil
	case config.ExtractorModel:
		return usecase.NewModelExtractor(textGen)
	default:
		return nil, fmt.Errorf("app: unknown preference extractor %q", b.cfg.Preferences.Extractor)
	}
}

// HTTPServer returns a server for the built handler using cfg's timeouts.
func (a *App) HTTPServer(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
