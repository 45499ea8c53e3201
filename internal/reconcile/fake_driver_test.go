package reconcile

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
)

// recordingConnector is a database/sql connector whose transactions only
// record what happened to them.
type recordingConnector struct {
	mu        sync.Mutex
	events    []string
	commitErr error
}

func newRecordingDB(c *recordingConnector) *sql.DB {
	return sql.OpenDB(c)
}

func (c *recordingConnector) record(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *recordingConnector) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.events...)
}

func (c *recordingConnector) Connect(ctx context.Context) (driver.Conn, error) {
	return &recordingConn{c: c}, nil
}

func (c *recordingConnector) Driver() driver.Driver {
	return recordingDriver{c: c}
}

type recordingDriver struct {
	c *recordingConnector
}

func (d recordingDriver) Open(name string) (driver.Conn, error) {
	return &recordingConn{c: d.c}, nil
}

type recordingConn struct {
	c *recordingConnector
}

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("statements are not supported")
}

func (c *recordingConn) Close() error {
	return nil
}

func (c *recordingConn) Begin() (driver.Tx, error) {
	c.c.record("begin")
	return recordingTx{c: c.c}, nil
}

type recordingTx struct {
	c *recordingConnector
}

func (t recordingTx) Commit() error {
	t.c.record("commit")
	return t.c.commitErr
}

func (t recordingTx) Rollback() error {
	t.c.record("rollback")
	return nil
}
