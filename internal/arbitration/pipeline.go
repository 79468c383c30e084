// Package arbitration orchestrates one oracle request end to end: resolve the
// archives, call the jury, publish the justification, encode the result, and
// run the commit-reveal state machine on top.
package arbitration

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/codec"
	"github.com/verdikta/external-adapter/internal/commit"
	"github.com/verdikta/external-adapter/internal/faults"
	"github.com/verdikta/external-adapter/internal/jury"
	"github.com/verdikta/external-adapter/internal/justification"
	"github.com/verdikta/external-adapter/internal/manifest"
	"github.com/verdikta/external-adapter/internal/monitoring"
	"github.com/verdikta/external-adapter/internal/workdir"
)

// Evaluation modes of the commit-reveal protocol.
const (
	ModeStandard = 0
	ModeCommit   = 1
	ModeReveal   = 2
)

// Request is one parsed oracle request.
type Request struct {
	JobRunID   string
	CIDs       []string // first is primary, rest are bCIDs
	Aggregator string
	ClassID    int
	Mode       int
	RequestID  string
}

// Outcome is the pipeline's answer: the encoded result bytes plus the CID of
// the published justification.
type Outcome struct {
	Result           []byte
	JustificationCID string
}

// Failure wraps a typed pipeline error together with the CID of the error
// justification, when one was published.
type Failure struct {
	Err              error
	JustificationCID string
}

func (f *Failure) Error() string { return f.Err.Error() }
func (f *Failure) Unwrap() error { return f.Err }

// Pipeline wires the per-request collaborators. All of them are injected so
// tests can substitute fakes; the commit cache is the only shared mutable
// state.
type Pipeline struct {
	resolver  *manifest.Resolver
	jury      jury.Client
	publisher *justification.Publisher
	cache     *commit.Cache
	workdirs  *workdir.Manager
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// New creates a pipeline.
func New(
	resolver *manifest.Resolver,
	juryClient jury.Client,
	publisher *justification.Publisher,
	cache *commit.Cache,
	workdirs *workdir.Manager,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		resolver:  resolver,
		jury:      juryClient,
		publisher: publisher,
		cache:     cache,
		workdirs:  workdirs,
		metrics:   metrics,
		logger:    logger,
	}
}

// Execute runs the state machine for one request. Mode 2 is served from the
// cache when possible; a miss falls through to a full evaluation, which the
// protocol tolerates but flags in the logs.
func (p *Pipeline) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	fp := commit.Fingerprint(req.RequestID, req.CIDs[0], req.CIDs[1:], req.ClassID)

	if req.Mode == ModeReveal {
		if rec, ok := p.cache.Lookup(fp); ok {
			p.metrics.RevealCacheHits.Inc()
			p.metrics.RevealCacheSize.Set(float64(p.cache.Len()))
			p.logger.Debug("reveal served from commit cache",
				zap.String("job_run_id", req.JobRunID),
				zap.String("justification_cid", rec.JustificationCID))
			return &Outcome{Result: rec.Result, JustificationCID: rec.JustificationCID}, nil
		}
		p.metrics.RevealCacheMisses.Inc()
		p.logger.Warn("reveal cache miss, running full evaluation",
			zap.String("job_run_id", req.JobRunID),
			zap.String("primary_cid", req.CIDs[0]))
	}

	out, err := p.evaluate(ctx, req, fp)
	if err != nil {
		return nil, p.fail(req, err)
	}
	return out, nil
}

// evaluate is the standard path: resolve, jury, publish, encode. Each phase
// is timed; the working directory is released on every exit.
func (p *Pipeline) evaluate(ctx context.Context, req *Request, fp [32]byte) (*Outcome, error) {
	dir, err := p.workdirs.Acquire()
	if err != nil {
		return nil, err
	}
	defer dir.Release()

	start := time.Now()
	resolved, err := p.resolver.Resolve(ctx, req.CIDs, dir)
	if err != nil {
		return nil, err
	}
	p.observePhase("resolve", req, start)

	juryReq, err := jury.BuildRequest(resolved)
	if err != nil {
		return nil, err
	}
	start = time.Now()
	verdict, err := p.jury.RankAndJustify(ctx, juryReq)
	if err != nil {
		return nil, err
	}
	p.observePhase("jury", req, start)

	start = time.Now()
	justCID, err := p.publisher.Publish(ctx, &justification.Document{
		CIDs:          req.CIDs,
		Outcomes:      resolved.Outcomes,
		Scores:        verdict.Scores,
		Justification: verdict.Justification,
	})
	if err != nil {
		return nil, err
	}
	p.observePhase("publish", req, start)

	resultBytes, err := codec.EncodeResult(justCID, verdict.Scores)
	if err != nil {
		return nil, err
	}

	if req.Mode == ModeCommit {
		hash := commit.CommitHash(resultBytes)
		p.cache.Store(fp, commit.Record{
			Result:           resultBytes,
			JustificationCID: justCID,
			CommitHash:       hash,
		})
		p.metrics.RevealCacheSize.Set(float64(p.cache.Len()))

		commitBytes, err := codec.EncodeCommitment(hash, justCID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Result: commitBytes, JustificationCID: justCID}, nil
	}

	return &Outcome{Result: resultBytes, JustificationCID: justCID}, nil
}

// fail classifies an error, publishes a best-effort error justification for
// informative failures, and wraps everything into a Failure.
func (p *Pipeline) fail(req *Request, err error) error {
	kind := faults.KindOf(err)
	if kind == "" {
		// Untyped errors past this point were cancellations or local I/O.
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			kind = faults.DeadlineExceeded
		case errors.Is(err, context.Canceled):
			kind = faults.RequestCanceled
		}
	}

	failure := &Failure{Err: err}
	if !faults.Informative(kind) {
		return failure
	}

	// The request context may already be dead; give the error justification
	// its own bounded lifetime.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cid, pubErr := p.publisher.PublishError(ctx, kind, err.Error(), req.CIDs)
	if pubErr != nil {
		p.logger.Warn("error justification upload failed",
			zap.String("job_run_id", req.JobRunID),
			zap.Error(pubErr))
		return failure
	}
	failure.JustificationCID = cid
	return failure
}

func (p *Pipeline) observePhase(phase string, req *Request, start time.Time) {
	elapsed := time.Since(start)
	p.metrics.RecordPhase(phase, elapsed.Seconds())
	p.logger.Info("pipeline phase complete",
		zap.String("phase", phase),
		zap.String("job_run_id", req.JobRunID),
		zap.Duration("elapsed", elapsed))
}
