package usecase

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMaxAttempts     = 3
	defaultInitialInterval = time.Second
	defaultMaxInterval     = 10 * time.Second
)

// TextGenerator is the generative model collaborator: prompt in, text out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Scorer is the zero-shot classification collaborator. It returns one score
// per candidate label, in label order.
type Scorer interface {
	Score(ctx context.Context, text string, labels []string, hypothesisTemplate string) ([]float64, error)
}

// RetryPolicy bounds retries of outbound model calls. The delay starts at
// InitialInterval and doubles up to MaxInterval.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry, when set, is called before each wait.
	OnRetry func(target string, err error, wait time.Duration)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = defaultInitialInterval
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = defaultMaxInterval
		if p.MaxInterval < p.InitialInterval {
			p.MaxInterval = p.InitialInterval
		}
	}
	return p
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// retryCall runs fn under the policy. Client errors other than 408 and 429
// are not retried.
func retryCall[T any](ctx context.Context, p RetryPolicy, target string, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	op := func() (T, error) {
		out, err := fn(ctx)
		if err != nil && !retryable(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}
	notify := func(err error, wait time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(target, err, wait)
		}
	}
	return backoff.RetryNotifyWithData(op, p.backOff(ctx), notify)
}

func retryable(err error) bool {
	status, ok := upstreamStatusCode(err)
	if !ok {
		return true
	}
	if status == http.StatusTooManyRequests || status == http.StatusRequestTimeout {
		return true
	}
	return status < 400 || status >= 500
}

// RetryingGenerator decorates a TextGenerator with the retry policy. An
// empty reply counts as a failed attempt.
type RetryingGenerator struct {
	next   TextGenerator
	policy RetryPolicy
}

func NewRetryingGenerator(next TextGenerator, policy RetryPolicy) *RetryingGenerator {
	return &RetryingGenerator{next: next, policy: policy}
}

func (g *RetryingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return retryCall(ctx, g.policy, "generator", func(ctx context.Context) (string, error) {
		text, err := g.next.Generate(ctx, prompt)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", errEmptyResponse
		}
		return text, nil
	})
}

// RetryingScorer decorates a Scorer with the retry policy.
type RetryingScorer struct {
	next   Scorer
	policy RetryPolicy
}

func NewRetryingScorer(next Scorer, policy RetryPolicy) *RetryingScorer {
	return &RetryingScorer{next: next, policy: policy}
}

func (s *RetryingScorer) Score(ctx context.Context, text string, labels []string, hypothesisTemplate string) ([]float64, error) {
	return retryCall(ctx, s.policy, "scorer", func(ctx context.Context) ([]float64, error) {
		return s.next.Score(ctx, text, labels, hypothesisTemplate)
	})
}
