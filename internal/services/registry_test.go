package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingProvider struct {
	BaseProvider
	healthErr error
	closeErr  error
	closed    bool
}

func (p *closingProvider) HealthCheck(context.Context) error { return p.healthErr }

func (p *closingProvider) Close() error {
	p.closed = true
	return p.closeErr
}

func TestRegistry_HealthCheckAll(t *testing.T) {
	r := NewRegistry()
	down := errors.New("down")

	r.Register("catalog", NewFuncProvider("catalog", func(context.Context) error { return nil }))
	r.Register("redis", &closingProvider{BaseProvider: BaseProvider{serviceType: "redis"}, healthErr: down})

	results := r.HealthCheckAll(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results["catalog"])
	assert.ErrorIs(t, results["redis"], down)

	assert.Equal(t, []string{"catalog", "redis"}, r.List())
	assert.Equal(t, "redis", r.Get("redis").Type())
	assert.Nil(t, r.Get("missing"))
}

func TestRegistry_CloseAllAndUnregister(t *testing.T) {
	r := NewRegistry()
	a := &closingProvider{BaseProvider: BaseProvider{serviceType: "a"}}
	b := &closingProvider{BaseProvider: BaseProvider{serviceType: "b"}, closeErr: errors.New("boom")}
	r.Register("a", a)
	r.Register("b", b)

	err := r.CloseAll()
	assert.Error(t, err)
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	r.Unregister("a")
	assert.Equal(t, []string{"b"}, r.List())
}

func TestParseDSNHost(t *testing.T) {
	tests := []struct {
		dsn  string
		host string
		port int
	}{
		{"postgres://u:p@db.internal:6543/app?sslmode=disable", "db.internal", 6543},
		{"postgres://u:p@db.internal/app", "db.internal", 5432},
		{"host=localhost user=app", "localhost", 5432},
	}
	for _, tt := range tests {
		host, port := parseDSNHost(tt.dsn)
		assert.Equal(t, tt.host, host, tt.dsn)
		assert.Equal(t, tt.port, port, tt.dsn)
	}
}
