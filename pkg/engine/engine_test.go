package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/observability"
	"github.com/Mindburn-Labs/agentlock/pkg/resolver"
)

var fixedNow = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func manifest(res contracts.ResidencyLevel) *contracts.AgentManifest {
	m := &contracts.AgentManifest{
		Name:    "billing-agent",
		Version: "0.9.0",
		Requires: contracts.AgentRequires{MCP: []contracts.Requirement{
			{Category: "payments", Permissions: []string{"charges:create"}},
		}},
	}
	if res != "" {
		m.Constraints = &contracts.AgentConstraints{Data: &contracts.DataConstraints{Residency: res}}
	}
	return m
}

func provider(id string, residency contracts.ResidencyLevel, signed bool) contracts.ServiceProvider {
	return contracts.ServiceProvider{
		ID:               id,
		Version:          "1.0.0",
		Endpoint:         "https://" + id + ".example/mcp",
		Categories:       []string{"payments"},
		Scopes:           []string{"charges:create", "charges:refund"},
		ResidencySupport: []contracts.ResidencyLevel{residency},
		MaxSensitivity:   contracts.SensitivityPIIHigh,
		Trust:            contracts.Trust{Signed: signed},
	}
}

func signedPolicy() contracts.Policy {
	return contracts.Policy{ID: "corp", Name: "Corporate", Priority: 10, Rules: []contracts.Rule{{
		ID: "signed", Type: contracts.RuleRequireSigned, Value: contracts.BoolValue(true), Severity: contracts.SeverityError,
	}}}
}

func euPolicy() contracts.Policy {
	return contracts.Policy{ID: "gdpr", Name: "GDPR", Priority: 50, Rules: []contracts.Rule{{
		ID: "eu", Type: contracts.RuleRequireResidency, Value: contracts.StringValue("eu-only"),
		Severity: contracts.SeverityError, Message: "EU residency required",
	}}}
}

type harness struct {
	engine *Engine
	spans  *tracetest.SpanRecorder
}

func newHarness(t *testing.T, opts ...Option) harness {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	obs, err := observability.NewWithProviders(
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)),
		sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())),
	)
	require.NoError(t, err)

	base := []Option{
		WithObservability(obs),
		WithClock(func() time.Time { return fixedNow }),
		WithRunIDs(func() string { return "run-1" }),
	}
	return harness{engine: New(append(base, opts...)...), spans: spans}
}

func spanNames(r *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range r.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func TestRun_Succeeds(t *testing.T) {
	h := newHarness(t)

	report, err := h.engine.Run(context.Background(), Request{
		Manifest: manifest(""),
		Catalog:  []contracts.ServiceProvider{provider("unsigned-pay", contracts.ResidencyAny, false), provider("signed-pay", contracts.ResidencyAny, true)},
		Policies: []contracts.Policy{signedPolicy()},
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", report.RunID)
	assert.True(t, report.Policy.Success)

	lock, ok := report.Lockfile()
	require.True(t, ok)
	require.Len(t, lock.Servers, 1)
	assert.Equal(t, "signed-pay", lock.Servers[0].ServerID)
	assert.Equal(t, []string{"charges:create"}, lock.Servers[0].Scopes)
	assert.Equal(t, "2026-05-06T07:08:09.000Z", lock.ResolvedAt)

	rejected := report.Result.Explain().Requirements[0].Rejected
	require.Len(t, rejected, 1)
	assert.Equal(t, contracts.ReasonUnsignedNotAllowed, rejected[0].Reason.Code)

	assert.ElementsMatch(t, []string{"policy.merge", "resolver.resolve", "agentlock.resolve"}, spanNames(h.spans))
	ended := h.spans.Ended()
	root := ended[len(ended)-1]
	assert.Equal(t, "agentlock.resolve", root.Name())
	for _, s := range ended[:len(ended)-1] {
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID(), s.Name())
	}
}

func TestRun_ResolutionFailure(t *testing.T) {
	h := newHarness(t)

	report, err := h.engine.Run(context.Background(), Request{
		Manifest: manifest(""),
		Catalog:  []contracts.ServiceProvider{provider("us-pay", contracts.ResidencyUSOnly, true)},
		Policies: []contracts.Policy{euPolicy()},
	})

	var resErr *resolver.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "payments", resErr.Category)
	require.NotNil(t, report)
	assert.False(t, report.Result.Succeeded())
	_, ok := report.Lockfile()
	assert.False(t, ok)
	assert.Equal(t, contracts.ReasonResidencyMismatch, resErr.Rejected[0].Reason.Code)
}

func TestRun_PolicyViolation(t *testing.T) {
	req := Request{
		Manifest: manifest(contracts.ResidencyUSOnly),
		Catalog:  []contracts.ServiceProvider{provider("eu-pay", contracts.ResidencyEUOnly, true)},
		Policies: []contracts.Policy{euPolicy()},
	}

	t.Run("stops by default", func(t *testing.T) {
		report, err := newHarness(t).engine.Run(context.Background(), req)
		require.ErrorIs(t, err, ErrPolicyViolation)
		require.NotNil(t, report)
		assert.Nil(t, report.Result)
		assert.False(t, report.Policy.Success)
		assert.Equal(t, "EU residency required", report.Policy.Violations[0].Message)
	})

	t.Run("allowed", func(t *testing.T) {
		report, err := newHarness(t, WithAllowPolicyErrors(true)).engine.Run(context.Background(), req)
		require.NoError(t, err)
		lock, ok := report.Lockfile()
		require.True(t, ok)
		assert.Equal(t, "eu-pay", lock.Servers[0].ServerID)
	})
}

func TestRun_InputErrors(t *testing.T) {
	e := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, Request{Manifest: manifest("")})
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = e.Run(context.Background(), Request{})
	assert.Error(t, err)
}

func TestNew_DefaultRunIDs(t *testing.T) {
	e := New()
	report, err := e.Run(context.Background(), Request{
		Manifest: manifest(""),
		Catalog:  []contracts.ServiceProvider{provider("p", contracts.ResidencyAny, true)},
	})
	require.NoError(t, err)
	assert.Len(t, report.RunID, 36)
}

func TestMerge_ConditionSeesManifest(t *testing.T) {
	p := euPolicy()
	p.Rules[0].When = "'payments' in agent.categories"

	res := New().Merge(context.Background(), manifest(""), []contracts.Policy{p})
	require.NotNil(t, res.EffectiveConstraints.Residency)
	assert.Equal(t, contracts.ResidencyEUOnly, *res.EffectiveConstraints.Residency)
}
