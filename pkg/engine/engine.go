// Package engine is the service layer around the pure resolution core. It
// merges policies, resolves the manifest against a catalog and records logs,
// spans and metrics for each run under a fresh run id.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/observability"
	"github.com/Mindburn-Labs/agentlock/pkg/policy"
	"github.com/Mindburn-Labs/agentlock/pkg/resolver"
)

// ErrPolicyViolation is returned when the merged policies report an
// error-severity violation and AllowPolicyErrors is not set.
var ErrPolicyViolation = errors.New("engine: policy violation")

// Request is the input to one run.
type Request struct {
	Manifest *contracts.AgentManifest
	Catalog  []contracts.ServiceProvider
	Policies []contracts.Policy
}

// Report is the outcome of one run. Result is nil when the run stopped at
// the policy stage.
type Report struct {
	RunID  string
	Policy contracts.PolicyResult
	Result resolver.Result
}

// Lockfile returns the lockfile of a successful run.
func (r *Report) Lockfile() (*contracts.Lockfile, bool) {
	res, ok := r.Result.(*resolver.Resolved)
	if !ok {
		return nil, false
	}
	return &res.Lockfile, true
}

// Engine runs resolutions. It is safe for concurrent use.
type Engine struct {
	obs               *observability.Provider
	resolver          *resolver.Resolver
	allowPolicyErrors bool
	newRunID          func() string
	logger            *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithObservability instruments runs with p.
func WithObservability(p *observability.Provider) Option {
	return func(e *Engine) { e.obs = p }
}

// WithClock sets the resolvedAt source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.resolver = resolver.New(resolver.WithClock(now)) }
}

// WithAllowPolicyErrors proceeds to resolution even when the policy merge
// reports error-severity violations.
func WithAllowPolicyErrors(allow bool) Option {
	return func(e *Engine) { e.allowPolicyErrors = allow }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(fn func() string) Option {
	return func(e *Engine) { e.newRunID = fn }
}

// New creates an Engine. Without WithObservability it uses a disabled provider.
func New(opts ...Option) *Engine {
	e := &Engine{
		resolver: resolver.New(),
		newRunID: func() string { return uuid.NewString() },
		logger:   slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.obs == nil {
		e.obs, _ = observability.New(context.Background(), &observability.Config{Enabled: false})
	}
	return e
}

// Merge evaluates policies against the manifest without resolving.
func (e *Engine) Merge(ctx context.Context, m *contracts.AgentManifest, policies []contracts.Policy) contracts.PolicyResult {
	_, span := e.obs.StartSpan(ctx, "policy.merge", trace.WithAttributes(observability.AttrPolicies.Int(len(policies))))
	defer span.End()

	res := policy.Merge(policies, m.Constraints, policy.WithSubject(policy.SubjectFromManifest(m)))
	span.SetAttributes(
		attribute.Bool("agentlock.policy.success", res.Success),
		attribute.Int("agentlock.policy.violations", len(res.Violations)),
		attribute.Int("agentlock.policy.warnings", len(res.Warnings)),
	)
	return res
}

// Run merges the request's policies and resolves its manifest. A non-nil
// Report is returned whenever the run started; err is ErrPolicyViolation
// (wrapped) or a *resolver.ResolutionError when the run did not succeed.
func (e *Engine) Run(ctx context.Context, req Request) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if req.Manifest == nil {
		return nil, errors.New("engine: nil manifest")
	}

	runID := e.newRunID()
	logger := e.logger.With("run_id", runID, "agent", req.Manifest.Name)
	ctx, done := e.obs.TrackOperation(ctx, "agentlock.resolve",
		observability.AttrRunID.String(runID),
		observability.AttrAgent.String(req.Manifest.Name),
	)

	report, err := e.run(ctx, logger, runID, req)
	done(err)
	return report, err
}

func (e *Engine) run(ctx context.Context, logger *slog.Logger, runID string, req Request) (*Report, error) {
	m := req.Manifest
	report := &Report{RunID: runID}

	report.Policy = e.Merge(ctx, m, req.Policies)
	for _, w := range report.Policy.Warnings {
		logger.WarnContext(ctx, "policy warning", "policy", w.PolicyID, "rule", w.RuleID, "message", w.Message)
	}
	if !report.Policy.Success {
		for _, v := range report.Policy.Violations {
			logger.ErrorContext(ctx, "policy violation", "policy", v.PolicyID, "rule", v.RuleID, "severity", v.Severity, "message", v.Message)
		}
		if !e.allowPolicyErrors {
			e.obs.RecordResolution(ctx, "policy_violation", 0, observability.AttrAgent.String(m.Name))
			return report, fmt.Errorf("%w: %d violation(s)", ErrPolicyViolation, len(report.Policy.Violations))
		}
		logger.WarnContext(ctx, "continuing despite policy violations")
	}

	_, span := e.obs.StartSpan(ctx, "resolver.resolve",
		trace.WithAttributes(attribute.Int("agentlock.requirements", len(m.Requires.MCP))))
	res := e.resolver.Resolve(resolver.InputFromManifest(m, req.Catalog, report.Policy.EffectiveConstraints))
	span.End()
	report.Result = res

	rejected := 0
	for _, r := range res.Explain().Requirements {
		rejected += len(r.Rejected)
	}

	switch r := res.(type) {
	case *resolver.Resolved:
		e.obs.RecordResolution(ctx, "succeeded", rejected, observability.AttrAgent.String(m.Name))
		logger.InfoContext(ctx, "resolution succeeded", "servers", len(r.Lockfile.Servers), "rejected", rejected)
		return report, nil
	case *resolver.Failed:
		e.obs.RecordResolution(ctx, "failed", rejected, observability.AttrAgent.String(m.Name))
		logger.WarnContext(ctx, "resolution failed", "category", r.Category, "rejected", len(r.Rejected))
		return report, r.Err()
	}
	return report, fmt.Errorf("engine: unexpected result %T", res)
}
