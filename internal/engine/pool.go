package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/GEGE-UNESP/ismr-downloader/internal/api"
	"github.com/GEGE-UNESP/ismr-downloader/internal/auth"
)

// Fetcher is the API surface the pool needs. *api.Client implements it.
type Fetcher interface {
	Do(ctx context.Context, token string, q api.Query) (*api.Result, error)
	FetchBundle(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// TokenSource supplies bearer tokens. *auth.Store implements it.
type TokenSource interface {
	Valid(ctx context.Context) (auth.Token, error)
	ForceRefresh(ctx context.Context) (auth.Token, error)
}

// Limiter gates outbound requests. *ratelimit.Limiter implements it.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// ArtifactStore persists fetched artifacts. *storage.Store implements it.
type ArtifactStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
}

// Pool executes chunk fetches with bounded concurrency. The limiter and
// token source are shared across all workers; chunks are not.
type Pool struct {
	Workers   int
	Client    Fetcher
	Tokens    TokenSource
	Limiter   Limiter
	Store     ArtifactStore
	Policy    Policy
	Overwrite bool
	Logger    *slog.Logger
}

// Run fetches every chunk and calls emit exactly once per chunk, from a
// single goroutine, in completion order. When a worker observes a
// halting condition (maintenance, fatal auth, context cancellation) the
// pool stops dispatching, lets in-flight chunks finish, emits
// NotAttempted for the rest, and returns the halt cause.
func (p *Pool) Run(ctx context.Context, chunks []Chunk, emit func(Outcome)) error {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	var (
		haltOnce sync.Once
		haltErr  error
	)
	haltCh := make(chan struct{})
	halt := func(err error) {
		haltOnce.Do(func() {
			haltErr = err
			close(haltCh)
		})
	}

	jobs := make(chan Chunk)
	out := make(chan Outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				// A chunk handed over but not yet started does not run
				// once the pool is draining or the run is canceled.
				select {
				case <-haltCh:
					out <- Outcome{Chunk: c, Kind: NotAttempted}
					continue
				case <-ctx.Done():
					halt(ctx.Err())
					out <- Outcome{Chunk: c, Kind: NotAttempted}
					continue
				default:
				}
				out <- p.fetch(ctx, c, halt, log)
			}
		}()
	}

	go func() {
		next := 0
	feed:
		for next < len(chunks) {
			select {
			case jobs <- chunks[next]:
				next++
			case <-haltCh:
				break feed
			case <-ctx.Done():
				halt(ctx.Err())
				break feed
			}
		}
		close(jobs)
		wg.Wait()
		for _, c := range chunks[next:] {
			out <- Outcome{Chunk: c, Kind: NotAttempted}
		}
		close(out)
	}()

	for o := range out {
		emit(o)
	}
	return haltErr
}

// fetch drives one chunk to a terminal outcome, consulting the policy
// after every failed attempt.
func (p *Pool) fetch(ctx context.Context, c Chunk, halt func(error), log *slog.Logger) Outcome {
	key := c.ArtifactKey()

	if !p.Overwrite {
		ok, err := p.Store.Exists(ctx, key)
		if err != nil {
			return Outcome{Chunk: c, Kind: Failed, Err: err}
		}
		if ok {
			log.Debug("artifact exists, skipping", "chunk", c.String())
			return Outcome{Chunk: c, Kind: Skipped}
		}
	}

	var attempt Attempt
	for {
		files, n, err := p.attempt(ctx, c, key)
		if err == nil {
			return Outcome{Chunk: c, Kind: Downloaded, Files: files, Bytes: n}
		}
		if errors.Is(err, auth.ErrAuthFailed) {
			halt(err)
			return Outcome{Chunk: c, Kind: Failed, Err: err}
		}
		if ctx.Err() != nil {
			return Outcome{Chunk: c, Kind: Failed, Err: ctx.Err()}
		}

		status := api.Classify(err)
		d := p.Policy.Decide(status, &attempt)
		switch d.Action {
		case RecordNoData:
			return Outcome{Chunk: c, Kind: NoData}

		case RefreshToken:
			log.Warn("token rejected, refreshing", "chunk", c.String())
			if _, rerr := p.Tokens.ForceRefresh(ctx); rerr != nil {
				halt(rerr)
				return Outcome{Chunk: c, Kind: Failed, Err: rerr}
			}

		case Retry:
			log.Warn("retrying chunk", "chunk", c.String(), "status", status.String(), "delay", d.Delay)
			select {
			case <-time.After(d.Delay):
			case <-ctx.Done():
				return Outcome{Chunk: c, Kind: Failed, Err: ctx.Err()}
			}

		case FailChunk:
			return Outcome{Chunk: c, Kind: Failed, Err: err}

		case HaltRun:
			halt(err)
			return Outcome{Chunk: c, Kind: Failed, Err: err}
		}
	}
}

// attempt performs one rate-limited, authenticated exchange for the
// chunk and persists the artifact on success.
func (p *Pool) attempt(ctx context.Context, c Chunk, key string) ([]string, int64, error) {
	if err := p.Limiter.Acquire(ctx); err != nil {
		return nil, 0, err
	}

	tok, err := p.Tokens.Valid(ctx)
	if err != nil {
		return nil, 0, err
	}

	res, err := p.Client.Do(ctx, tok.Value, api.Query{
		Station:  c.Station,
		DataType: c.DataType,
		Start:    c.Range.Start,
		End:      c.Range.End,
	})
	if err != nil {
		return nil, 0, err
	}

	body := res.Body
	if res.Bundle != nil {
		body, _, err = p.Client.FetchBundle(ctx, res.Bundle.URL)
		if err != nil {
			return nil, 0, err
		}
	}
	defer body.Close()

	n, err := p.Store.Save(ctx, key, body)
	if err != nil {
		return nil, 0, fmt.Errorf("persist %s: %w", key, err)
	}
	return []string{key}, n, nil
}
