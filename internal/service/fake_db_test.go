package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
)

// txConnector hands out connections whose transactions only record their
// outcome. Repositories in these tests never issue statements.
type txConnector struct {
	mu     sync.Mutex
	events []string
}

func newTxDB(c *txConnector) *sql.DB {
	return sql.OpenDB(c)
}

func (c *txConnector) record(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *txConnector) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.events...)
}

func (c *txConnector) Connect(ctx context.Context) (driver.Conn, error) {
	return txConn{c: c}, nil
}

func (c *txConnector) Driver() driver.Driver {
	return txDriver{c: c}
}

type txDriver struct {
	c *txConnector
}

func (d txDriver) Open(name string) (driver.Conn, error) {
	return txConn{c: d.c}, nil
}

type txConn struct {
	c *txConnector
}

func (c txConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("statements are not supported")
}

func (c txConn) Close() error {
	return nil
}

func (c txConn) Begin() (driver.Tx, error) {
	c.c.record("begin")
	return txOutcome{c: c.c}, nil
}

type txOutcome struct {
	c *txConnector
}

func (t txOutcome) Commit() error {
	t.c.record("commit")
	return nil
}

func (t txOutcome) Rollback() error {
	t.c.record("rollback")
	return nil
}
