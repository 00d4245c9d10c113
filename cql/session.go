package cql

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nativecql/coredriver/frame"
	"github.com/nativecql/coredriver/frame/request"
	"github.com/nativecql/coredriver/frame/response"
	"github.com/nativecql/coredriver/transport"
)

// Re-exported so callers of this package never need to import frame
// directly for the handful of wire-level types a Statement is built
// from.
type (
	Consistency = frame.Consistency
	Compression = frame.Compression
)

const (
	ANY         = frame.ANY
	ONE         = frame.ONE
	TWO         = frame.TWO
	THREE       = frame.THREE
	QUORUM      = frame.QUORUM
	ALL         = frame.ALL
	LOCALQUORUM = frame.LOCALQUORUM
	EACHQUORUM  = frame.EACHQUORUM
	SERIAL      = frame.SERIAL
	LOCALSERIAL = frame.LOCALSERIAL
	LOCALONE    = frame.LOCALONE
)

var (
	Snappy = frame.Snappy
	Lz4    = frame.Lz4
)

// Session owns a Cluster (one connection pool per host), a prepared
// statement cache, and the reprepare coordinator that keeps that cache
// consistent across hosts. Every Execute call runs the request pipeline
// described in §4.7 over the cluster's current query plan.
type Session struct {
	cfg         SessionConfig
	cluster     *transport.Cluster
	prepared    *preparedCache
	reprepare   *reprepareCoordinator
	retryPolicy transport.RetryPolicy

	mu       sync.RWMutex
	keyspace string
}

func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	cfg = cfg.Clone()
	if cfg.Logger == nil {
		cfg.Logger = transport.NopLogger{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var authenticator transport.Authenticator
	if cfg.Username != "" {
		authenticator = PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}

	connCfg := transport.ConnConfig{
		ProtocolVersion:    cfg.ProtocolVersion,
		Compression:        cfg.Compression,
		Keyspace:           cfg.Keyspace,
		Authenticator:      authenticator,
		TLSConfig:          cfg.TLSConfig,
		ConnectTimeout:     cfg.ConnectTimeout,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		DefunctReadTimeout: cfg.DefunctReadTimeout,
		Logger:             cfg.Logger,
	}

	drainGrace := 2 * cfg.DefunctReadTimeout
	if drainGrace > 5*time.Minute || drainGrace <= 0 {
		drainGrace = 5 * time.Minute
	}

	local := transport.DistanceConfig{
		CoreConnections:               cfg.CoreConnectionsPerHost,
		MaxConnections:                cfg.MaxConnectionsPerHost,
		MaxInflightPerConnection:      cfg.MaxRequestsPerConnection,
		MaxInflightThresholdForGrowth: cfg.GrowthThresholdRequests,
		HeartbeatInterval:             cfg.HeartbeatInterval,
	}
	remote := local
	remote.MaxConnections = 1
	remote.CoreConnections = 1

	poolCfg := transport.PoolConfig{
		Local:  local,
		Remote: remote,
		ReconnectionSchedule: func() transport.ReconnectionSchedule {
			return transport.NewExponentialReconnectionSchedule(1000, 60000)
		},
		GrowthCooldown: time.Second,
		DrainGrace:     drainGrace,
	}

	var policy transport.HostSelectionPolicy
	if cfg.LocalDC != "" {
		policy = transport.NewTokenAwarePolicy(transport.NewDCAwareRoundRobinPolicy(cfg.LocalDC, 2))
	} else {
		policy = transport.NewTokenAwarePolicy(transport.NewRoundRobinPolicy())
	}

	cluster := transport.NewCluster(transport.ClusterConfig{
		Hosts:   cfg.Hosts,
		ConnCfg: connCfg,
		PoolCfg: poolCfg,
		Policy:  policy,
	}, cfg.Logger)

	if err := cluster.Connect(ctx); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:         cfg,
		cluster:     cluster,
		prepared:    newPreparedCache(cfg.PreparedStatementCacheSize),
		retryPolicy: transport.NewDefaultRetryPolicy(),
		keyspace:    cfg.Keyspace,
	}
	s.reprepare = newReprepareCoordinator(cluster, cfg.ReprepareConcurrency, cfg.ProtocolVersion, cfg.Logger)
	return s, nil
}

func (s *Session) currentKeyspace() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyspace
}

// PrepareOption customizes a single Prepare call: a keyspace other than
// the session's current one, or an opaque payload to forward alongside
// the PREPARE request.
type PrepareOption func(*prepareOptions)

type prepareOptions struct {
	keyspaceOverride string
	customPayload    map[string][]byte
}

func WithKeyspaceOverride(keyspace string) PrepareOption {
	return func(o *prepareOptions) { o.keyspaceOverride = keyspace }
}

func WithCustomPayload(payload map[string][]byte) PrepareOption {
	return func(o *prepareOptions) { o.customPayload = payload }
}

// Prepare returns a cached PreparedStatement for cql, preparing it (and
// fanning the result out to every other host with a live connection) on
// a cache miss. Per §4.5, the cache key is (keyspaceOverride, or the
// session's current keyspace when no override is given, cql) — two
// Prepare calls for the same text against different keyspaces are never
// conflated, and concurrent callers racing on the same key single-flight
// into one PREPARE.
func (s *Session) Prepare(ctx context.Context, cql string, opts ...PrepareOption) (*PreparedStatement, error) {
	var o prepareOptions
	for _, opt := range opts {
		opt(&o)
	}
	keyspace := o.keyspaceOverride
	if keyspace == "" {
		keyspace = s.currentKeyspace()
	}

	key := preparedCacheKey{keyspace: keyspace, cql: cql}
	return s.prepared.getOrPrepare(ctx, key, func(ctx context.Context) (*PreparedStatement, error) {
		s.cfg.Logger.Debugf("cql: prepare: cache miss for %q (keyspace %q)", cql, keyspace)
		return s.prepareOnAnyHost(ctx, cql, keyspace)
	})
}

func (s *Session) prepareOnAnyHost(ctx context.Context, cql, keyspace string) (*PreparedStatement, error) {
	plan := s.cluster.QueryPlan(nil)
	if len(plan) == 0 {
		return nil, &NoHostAvailableError{}
	}

	tried := map[string]error{}
	var order []string
	for _, h := range plan {
		pool := s.cluster.PoolFor(h.Address)
		if pool == nil {
			continue
		}
		conn, err := pool.Borrow(-1)
		if err != nil {
			tried[h.Address] = err
			order = append(order, h.Address)
			continue
		}

		df, err := conn.Send(ctx, request.Prepare{Query: cql, Keyspace: keyspace})
		if err != nil {
			tried[h.Address] = err
			order = append(order, h.Address)
			continue
		}
		if df.Header.OpCode == frame.OpError {
			cqlErr := frame.ParseError(frame.NewBuffer(df.Body))
			tried[h.Address] = cqlErr
			order = append(order, h.Address)
			continue
		}
		result, err := response.ParseResult(frame.NewBuffer(df.Body), s.cfg.ProtocolVersion)
		if err != nil || result.Prepared == nil {
			return nil, fmt.Errorf("cql: PREPARE returned a non-Prepared result")
		}

		stmt := newPreparedStatement(cql, keyspace, result.Prepared.QueryID, result.Prepared.BindMetadata, result.Prepared.ResultMetadata)
		go s.reprepare.reprepareAll(context.Background(), stmt, h.Address)
		return stmt, nil
	}

	return nil, &NoHostAvailableError{TriedHosts: tried, Order: order}
}

// Execute runs stmt through the request pipeline against the cluster's
// current query plan: per-host retry-policy consultation, UNPREPARED
// recovery, and — for idempotent statements — speculative execution
// against a second host if the first hasn't answered within
// speculativeExecutionDelay (50ms).
func (s *Session) Execute(ctx context.Context, stmt *Statement) (*ResultSet, error) {
	plan := s.cluster.QueryPlan(stmt.RoutingKey)
	if len(plan) == 0 {
		return nil, &NoHostAvailableError{}
	}

	type outcome struct {
		rs  *ResultSet
		err error
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tried := map[string]error{}
	var order []string
	var mu sync.Mutex

	resultCh := make(chan outcome, 2)
	var wg sync.WaitGroup

	launch := func(hosts []*transport.Host) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rs, err := s.executeOnPlan(ctx, stmt, hosts, tried, &order, &mu)
			select {
			case resultCh <- outcome{rs: rs, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	launch(plan)

	const speculativeExecutionDelay = 50 * time.Millisecond
	if stmt.Idempotent && len(plan) > 1 {
		go func() {
			select {
			case <-time.After(speculativeExecutionDelay):
				launch(plan[1:])
			case <-ctx.Done():
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var lastErr error
	for out := range resultCh {
		if out.err == nil {
			cancel()
			return out.rs, nil
		}
		lastErr = out.err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("cql: no host available")
	}
	return nil, &NoHostAvailableError{TriedHosts: tried, Order: order}
}

// executeOnPlan runs stmt against hosts in order, moving to the next
// host whenever the retry policy (or an unrecoverable error) says to,
// and retrying the same host once in place for an UNPREPARED response
// that a synchronous reprepare resolved.
func (s *Session) executeOnPlan(ctx context.Context, stmt *Statement, hosts []*transport.Host, tried map[string]error, order *[]string, mu *sync.Mutex) (*ResultSet, error) {
outer:
	for _, h := range hosts {
		retryCount := 0
		reprepared := false
		for {
			rs, decision, err := s.attempt(ctx, stmt, h, retryCount)
			if err == nil {
				return rs, nil
			}

			mu.Lock()
			if _, seen := tried[h.Address]; !seen {
				*order = append(*order, h.Address)
			}
			tried[h.Address] = err
			mu.Unlock()

			if _, ok := err.(*frame.UnpreparedError); ok && decision == transport.RetrySameHost {
				if reprepared {
					return nil, err
				}
				reprepared = true
			}

			switch decision {
			case transport.RetrySameHost:
				retryCount++
				continue
			case transport.RetryNextHost:
				continue outer
			default:
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("cql: exhausted query plan")
}

// attempt runs one request against h and classifies the outcome: err ==
// nil means success, otherwise decision says what executeOnPlan should
// do about it.
func (s *Session) attempt(ctx context.Context, stmt *Statement, h *transport.Host, retryCount int) (*ResultSet, transport.RetryDecision, error) {
	pool := s.cluster.PoolFor(h.Address)
	if pool == nil {
		return nil, transport.RetryNextHost, fmt.Errorf("cql: no pool for host %s", h.Address)
	}

	conn, err := pool.Borrow(pool.ShardHint(stmt.RoutingKey))
	if err != nil {
		return nil, transport.RetryNextHost, err
	}

	df, err := conn.Send(ctx, s.buildRequest(stmt))
	if err != nil {
		return nil, transport.RetryNextHost, err
	}

	switch df.Header.OpCode {
	case frame.OpResult:
		result, perr := response.ParseResult(frame.NewBuffer(df.Body), s.cfg.ProtocolVersion)
		if perr != nil {
			return nil, transport.RetryRethrow, perr
		}
		rs, rerr := s.toResultSet(stmt, result)
		return rs, transport.RetryRethrow, rerr

	case frame.OpError:
		cqlErr := frame.ParseError(frame.NewBuffer(df.Body))
		switch e := cqlErr.(type) {
		case *frame.UnpreparedError:
			if stmt.Prepared == nil {
				return nil, transport.RetryRethrow, cqlErr
			}
			if rerr := s.reprepare.reprepareOnHost(ctx, stmt.Prepared, h.Address); rerr != nil {
				return nil, transport.RetryRethrow, rerr
			}
			return nil, transport.RetrySameHost, cqlErr
		case *frame.ReadTimeoutError:
			return nil, s.retryPolicy.OnReadTimeout(e, stmt.Idempotent, retryCount), cqlErr
		case *frame.WriteTimeoutError:
			return nil, s.retryPolicy.OnWriteTimeout(e, stmt.Idempotent, retryCount), cqlErr
		case *frame.UnavailableError:
			return nil, s.retryPolicy.OnUnavailable(e, stmt.Idempotent, retryCount), cqlErr
		default:
			return nil, transport.RetryRethrow, cqlErr
		}

	default:
		return nil, transport.RetryRethrow, fmt.Errorf("cql: unexpected response opcode 0x%02x", df.Header.OpCode)
	}
}

func (s *Session) buildRequest(stmt *Statement) request.Request {
	params := s.paramsFor(stmt)
	if stmt.Prepared != nil {
		return request.Execute{
			QueryID:          stmt.Prepared.ID,
			ResultMetadataID: stmt.Prepared.ResultMetadata().ResultMetadataID,
			Params:           params,
		}
	}
	return request.Query{CQL: stmt.CQL, Params: params}
}

func (s *Session) paramsFor(stmt *Statement) request.Params {
	consistency := s.cfg.DefaultConsistency
	if stmt.HasConsistency {
		consistency = stmt.Consistency
	}

	values := make([]request.BoundValue, len(stmt.Values))
	for i, v := range stmt.Values {
		bv := request.BoundValue{Value: v}
		if stmt.Named && i < len(stmt.Names) {
			bv.Name = stmt.Names[i]
		}
		values[i] = bv
	}

	p := request.Params{
		Consistency: consistency,
		Values:      values,
		Named:       stmt.Named,
		PageSize:    stmt.PageSize,
		PagingState: stmt.PagingState,
	}
	if stmt.HasSerialConsistency {
		p.HasSerialCL = true
		p.SerialConsistency = stmt.SerialConsistency
	}
	if stmt.HasTimestamp {
		p.HasTimestamp = true
		p.Timestamp = stmt.Timestamp
	}
	return p
}

func (s *Session) toResultSet(stmt *Statement, result response.Result) (*ResultSet, error) {
	switch {
	case result.Rows != nil:
		// A metadata_changed RESULT (e.g. observed mid-iteration after an
		// ALTER TABLE) carries a fresh ResultMetadataID; rotate the cached
		// statement so every subsequent EXECUTE uses it instead of the
		// stale one it was originally prepared with.
		if stmt.Prepared != nil && len(result.Rows.Metadata.ResultMetadataID) > 0 {
			stmt.Prepared.rotate(result.Rows.Metadata)
		}
		return &ResultSet{
			Columns:      result.Rows.Metadata.Columns,
			Rows:         result.Rows.Rows,
			HasMorePages: len(result.Rows.Metadata.PagingState) > 0,
			PagingState:  result.Rows.Metadata.PagingState,
		}, nil
	case result.Void != nil:
		return &ResultSet{}, nil
	case result.SetKeyspace != nil:
		s.mu.Lock()
		s.keyspace = result.SetKeyspace.Keyspace
		s.mu.Unlock()
		return &ResultSet{}, nil
	case result.SchemaChange != nil:
		return &ResultSet{}, nil
	default:
		return &ResultSet{}, nil
	}
}

// ExecuteBatch sends b to the hosts of the query plan in order, treating
// the whole batch as one request. It does not consult the retry policy:
// it moves to the next host when borrowing a connection or sending
// fails, or on an UNAVAILABLE error when b is idempotent, and returns
// any other server error at once.
func (s *Session) ExecuteBatch(ctx context.Context, b *Batch) error {
	plan := s.cluster.QueryPlan(b.RoutingKey)
	if len(plan) == 0 {
		return &NoHostAvailableError{}
	}

	tried := map[string]error{}
	var order []string

	for _, h := range plan {
		pool := s.cluster.PoolFor(h.Address)
		if pool == nil {
			continue
		}
		conn, err := pool.Borrow(pool.ShardHint(b.RoutingKey))
		if err != nil {
			tried[h.Address] = err
			order = append(order, h.Address)
			continue
		}

		consistency := s.cfg.DefaultConsistency
		if b.HasConsistency {
			consistency = b.Consistency
		}
		req := request.Batch{
			Kind:         b.Kind,
			Entries:      b.Entries,
			Consistency:  consistency,
			HasSerialCL:  b.HasSerialConsistency,
			Timestamp:    b.Timestamp,
			HasTimestamp: b.HasTimestamp,
		}
		if b.HasSerialConsistency {
			req.SerialConsistency = b.SerialConsistency
		}

		df, err := conn.Send(ctx, req)
		if err != nil {
			tried[h.Address] = err
			order = append(order, h.Address)
			continue
		}
		if df.Header.OpCode == frame.OpError {
			cqlErr := frame.ParseError(frame.NewBuffer(df.Body))
			if _, ok := cqlErr.(*frame.UnavailableError); ok && b.Idempotent {
				tried[h.Address] = cqlErr
				order = append(order, h.Address)
				continue
			}
			return cqlErr
		}
		return nil
	}

	return &NoHostAvailableError{TriedHosts: tried, Order: order}
}

// Close tears down every connection this session holds.
func (s *Session) Close() {
	s.cluster.Shutdown()
}
