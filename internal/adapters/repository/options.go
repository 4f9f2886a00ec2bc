package repository

// Option applies a configuration option to the Postgres store.
type Option func(*Postgres)

// WithMinConns sets the minimum number of pooled connections.
func WithMinConns(n int32) Option {
	return func(p *Postgres) {
		if n > 0 {
			p.minConns = n
		}
	}
}

// WithMaxConns sets the maximum number of pooled connections.
func WithMaxConns(n int32) Option {
	return func(p *Postgres) {
		if n > 0 {
			p.maxConns = n
		}
	}
}
