package aicontext

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Reply is a successful chat round trip.
type Reply struct {
	Prompt string
	Data   any
}

type Pipeline struct {
	store      Store
	client     Client
	now        func() time.Time
	windowDays int
	logger     *slog.Logger
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func WithWindowDays(days int) Option {
	return func(p *Pipeline) {
		if days > 0 {
			p.windowDays = days
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPipeline(store Store, client Client, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		client:     client,
		now:        time.Now,
		windowDays: DefaultWindowDays,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Assemble loads the profile and the trailing window records for userID and
// renders them with message into a prompt. A missing profile stops before
// any record query runs.
func (p *Pipeline) Assemble(ctx context.Context, userID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrInvalidInput
	}

	profile, err := p.store.LoadProfile(ctx, userID)
	if err != nil {
		return "", err
	}

	now := p.now()
	window := TrailingWindow(now, p.windowDays)

	var (
		bloodSugar []BloodSugarRecord
		vitals     []VitalRecord
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		records, err := p.store.ListBloodSugar(groupCtx, userID, window)
		bloodSugar = records
		return err
	})
	group.Go(func() error {
		records, err := p.store.ListVitals(groupCtx, userID, window)
		vitals = records
		return err
	})
	if err := group.Wait(); err != nil {
		return "", err
	}

	return FormatPrompt(PromptInput{
		Profile:    profile,
		Age:        profile.AgeOn(now),
		BloodSugar: bloodSugar,
		Vitals:     vitals,
		Message:    message,
		WindowDays: p.windowDays,
		Location:   now.Location(),
	}), nil
}

func (p *Pipeline) Chat(ctx context.Context, userID, message string) (Reply, error) {
	prompt, err := p.Assemble(ctx, userID, message)
	if err != nil {
		return Reply{}, err
	}

	started := time.Now()
	data, err := p.client.Send(ctx, prompt)
	if err != nil {
		p.logger.Warn("ai upstream call failed",
			"user_id", userID,
			"elapsed_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
		return Reply{}, err
	}
	p.logger.Info("ai upstream call completed",
		"user_id", userID,
		"prompt_bytes", len(prompt),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return Reply{Prompt: prompt, Data: data}, nil
}
