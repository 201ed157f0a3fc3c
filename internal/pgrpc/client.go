package pgrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/restbridge/internal/postgrest"
)

// Querier runs a single-row query. Satisfied by *pgxpool.Pool, *pgx.Conn
// and pgx.Tx.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config holds connection settings.
type Config struct {
	URL      string
	Schema   string
	MaxConns int32
}

// Client calls procedures through a Querier.
type Client struct {
	q      Querier
	schema string
	logger *slog.Logger
	close  func()
}

// Option configures a Client.
type Option func(*Client)

// WithSchema qualifies procedure names with schema. Default: public.
func WithSchema(schema string) Option {
	return func(c *Client) {
		if schema != "" {
			c.schema = schema
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client over q.
func New(q Querier, opts ...Option) *Client {
	c := &Client{q: q, schema: "public", logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens a connection pool and returns a Client owning it.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse pg config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}

	c := New(pool, append([]Option{WithSchema(cfg.Schema)}, opts...)...)
	c.close = pool.Close
	return c, nil
}

// Close releases the pool opened by Connect. It is a no-op for clients
// built with New.
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// Call invokes procedure with named arguments and returns its result as
// JSON. A procedure returning NULL yields "null".
func (c *Client) Call(ctx context.Context, procedure string, args map[string]any) (json.RawMessage, error) {
	sql, params, err := c.statement(procedure, args)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := c.q.QueryRow(ctx, sql, params...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return json.RawMessage("null"), nil
		}
		return nil, translateError(err)
	}
	if raw == nil {
		return json.RawMessage("null"), nil
	}

	c.logger.Debug("procedure called", "procedure", procedure, "args", len(params))
	return json.RawMessage(raw), nil
}

// statement builds the call and its parameters in sorted argument order.
func (c *Client) statement(procedure string, args map[string]any) (string, []any, error) {
	if procedure == "" {
		return "", nil, errors.New("pgrpc: empty procedure name")
	}

	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	params := make([]any, len(names))
	for i, name := range names {
		v, err := normalize(args[name])
		if err != nil {
			return "", nil, fmt.Errorf("pgrpc: argument %q: %w", name, err)
		}
		parts[i] = fmt.Sprintf("%s => $%d", pgx.Identifier{name}.Sanitize(), i+1)
		params[i] = v
	}

	fn := pgx.Identifier{c.schema, procedure}.Sanitize()
	return fmt.Sprintf("SELECT to_jsonb(%s(%s))", fn, strings.Join(parts, ", ")), params, nil
}

// normalize turns an argument into plain JSON values (maps, slices,
// strings, bools, int64, float64) that pgx can encode for any parameter
// type the server infers.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return numbers(generic), nil
}

func numbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i := range val {
			val[i] = numbers(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = numbers(val[k])
		}
		return val
	default:
		return v
	}
}

// translateError maps database errors to *postgrest.Error. Other errors
// are returned unchanged.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	e := postgrest.NewError(statusFor(pgErr.Code), pgErr.Code, pgErr.Message)
	e.Details = pgErr.Detail
	e.Hint = pgErr.Hint
	return e
}

// statusFor returns the HTTP status PostgREST reports for a SQLSTATE.
func statusFor(code string) int {
	switch {
	case code == "23503" || code == "23505":
		return http.StatusConflict
	case code == "42501":
		return http.StatusForbidden
	case code == "42883" || code == "42P01":
		return http.StatusNotFound
	case code == "P0001":
		return http.StatusBadRequest
	case strings.HasPrefix(code, "08"):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(code, "22") || strings.HasPrefix(code, "23"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
