package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/sqliteop/internal/api"
	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
	"github.com/nerrad567/sqliteop/migrations"
)

// command runs one subcommand against an app.
type command struct {
	app    *app
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// flagSet returns a subcommand flag set that reports errors instead of exiting.
func (c *command) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

// parse parses args and requires exactly want positional arguments.
func parse(fs *pflag.FlagSet, args []string, want int, what string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	if fs.NArg() != want {
		return fmt.Errorf("%w: %s expects %s", errUsage, fs.Name(), what)
	}
	return nil
}

// exec runs one statement. With --param values the statement is bound
// once through InsertUpdateRow; otherwise it runs through ExecuteQuery.
func (c *command) exec(ctx context.Context, args []string) error {
	fs := c.flagSet("exec")
	params := fs.StringArrayP("param", "p", nil, "bound value for the next ? placeholder (repeatable)")
	if err := parse(fs, args, 1, "one SQL statement"); err != nil {
		return err
	}
	stmt := fs.Arg(0)

	var (
		res database.ExecResult
		err error
	)
	if fs.Changed("param") {
		values := make([]any, len(*params))
		for i, p := range *params {
			values[i] = p
		}
		res, err = c.app.op.InsertUpdateRow(ctx, stmt, values)
	} else {
		res, err = c.app.op.ExecuteQuery(ctx, stmt)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "rows affected: %d, last insert id: %d\n", res.RowsAffected, res.LastInsertID)
	return nil
}

// bulk runs one statement per row of a JSON array of arrays.
func (c *command) bulk(ctx context.Context, args []string) error {
	fs := c.flagSet("bulk")
	file := fs.StringP("file", "f", "-", "JSON file of value rows, - for stdin")
	if err := parse(fs, args, 1, "one SQL statement"); err != nil {
		return err
	}

	var r io.Reader = c.in
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("opening %s: %w", *file, err)
		}
		defer f.Close()
		r = f
	}

	rows, err := decodeRows(r)
	if err != nil {
		return err
	}

	res, err := c.app.op.BulkInsertUpdateRows(ctx, fs.Arg(0), rows)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "rows: %d, rows affected: %d\n", len(rows), res.RowsAffected)
	return nil
}

// decodeRows parses [[v, ...], ...]. Integral numbers bind as int64 and
// other numbers as float64.
func decodeRows(r io.Reader) ([][]any, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding rows: %w", err)
	}

	for _, row := range raw {
		for i, v := range row {
			n, ok := v.(json.Number)
			if !ok {
				continue
			}
			if iv, err := n.Int64(); err == nil {
				row[i] = iv
			} else if fv, err := n.Float64(); err == nil {
				row[i] = fv
			} else {
				return nil, fmt.Errorf("decoding rows: bad number %q", n)
			}
		}
	}
	return raw, nil
}

// query runs a SELECT and prints the result.
func (c *command) query(ctx context.Context, args []string) error {
	fs := c.flagSet("query")
	lazy := fs.Bool("lazy", false, "stream rows instead of fetching them all first")
	format := fs.String("format", "table", "table or json (one object per row)")
	if err := parse(fs, args, 1, "one SQL query"); err != nil {
		return err
	}

	var p rowPrinter
	switch *format {
	case "table":
		p = newTablePrinter(c.out)
	case "json":
		p = newJSONPrinter(c.out)
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}
	asDict := database.AsDict(*format == "json")

	if *lazy {
		rows, err := c.app.op.SelectQuery(ctx, fs.Arg(0), asDict)
		if err != nil {
			return err
		}
		defer rows.Close()

		p.header(rows.Columns())
		for row, err := range rows.All() {
			if err != nil {
				return err
			}
			if err := p.row(row); err != nil {
				return err
			}
		}
		return p.flush()
	}

	rs, err := c.app.op.SelectQueryFetchAll(ctx, fs.Arg(0), asDict)
	if err != nil {
		return err
	}
	p.header(rs.Columns)
	for _, row := range rs.Rows {
		if err := p.row(row); err != nil {
			return err
		}
	}
	return p.flush()
}

// migrate applies, rolls back or lists migrations from a directory.
func (c *command) migrate(ctx context.Context, args []string) error {
	fs := c.flagSet("migrate")
	dir := fs.StringP("dir", "d", "", "directory of YYYYMMDD_HHMMSS_name.{up,down}.sql files (default built-in schema)")
	if err := parse(fs, args, 1, "up, down or status"); err != nil {
		return err
	}
	src := migrations.Source()
	if *dir != "" {
		if info, err := os.Stat(*dir); err != nil || !info.IsDir() {
			return fmt.Errorf("migrations directory %q not found", *dir)
		}
		src = database.MigrationSource{FS: os.DirFS(*dir), Dir: "."}
	}

	switch fs.Arg(0) {
	case "up":
		if err := c.app.op.Migrate(ctx, src); err != nil {
			return err
		}
	case "down":
		if err := c.app.op.MigrateDown(ctx, src); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("%w: migrate expects up, down or status, got %q", errUsage, fs.Arg(0))
	}

	applied, pending, err := c.app.op.MigrationStatus(ctx, src)
	if err != nil {
		return err
	}
	for _, m := range applied {
		fmt.Fprintf(c.out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}
	for _, m := range pending {
		fmt.Fprintf(c.out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// demo walks through the Person table lifecycle: create, insert, read,
// delete, drop, and a read that fails because the table is gone.
func (c *command) demo(ctx context.Context) error {
	op := c.app.op
	step := func(format string, args ...any) {
		fmt.Fprintf(c.out, "-- "+format+"\n", args...)
	}

	step("create table Person")
	if _, err := op.ExecuteQuery(ctx,
		"CREATE TABLE IF NOT EXISTS Person (Email TEXT PRIMARY KEY, First_Name TEXT, Last_Name TEXT, Score INTEGER)",
	); err != nil {
		return err
	}

	step("insert abc@email.com (autocommit)")
	if _, err := op.InsertUpdateRow(ctx,
		"INSERT INTO Person (Email, First_Name, Last_Name, Score) VALUES (?, ?, ?, ?)",
		[]any{"abc@email.com", "ab", "c", 95},
		database.WithAutocommit(true),
	); err != nil {
		return err
	}

	step("select as records")
	rows, err := op.SelectQuery(ctx, "SELECT * FROM Person", database.AsDict(true))
	if err != nil {
		return err
	}
	p := newJSONPrinter(c.out)
	for row, err := range rows.All() {
		if err != nil {
			return err
		}
		if err := p.row(row); err != nil {
			return err
		}
	}

	step("delete all rows")
	if _, err := op.ExecuteQuery(ctx, "DELETE FROM Person"); err != nil {
		return err
	}

	rs, err := op.SelectQueryFetchAll(ctx, "SELECT * FROM Person", database.AsDict(true))
	if err != nil {
		return err
	}
	step("rows after delete: %d", rs.Len())

	step("drop table Person")
	if _, err := op.ExecuteQuery(ctx, "DROP TABLE Person"); err != nil {
		return err
	}

	_, err = op.SelectQueryFetchAll(ctx, "SELECT * FROM Person")
	if !errors.Is(err, database.ErrQuery) {
		return fmt.Errorf("select after drop: got %v, want a query error", err)
	}
	step("select after drop failed as expected: %v", err)
	return nil
}

// health checks the database file and any connected sinks.
func (c *command) health(ctx context.Context) error {
	if err := c.app.op.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.app.mqtt != nil {
		if err := c.app.mqtt.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if c.app.influx != nil {
		if err := c.app.influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	fmt.Fprintf(c.out, "ok %s\n", c.app.op.Path())
	return nil
}

// watch prints change and error events published by any sqliteop process
// sharing the broker and topic prefix, until ctx is cancelled.
func (c *command) watch(ctx context.Context) error {
	if c.app.mqtt == nil {
		return errors.New("watch requires mqtt.enabled")
	}
	topics := c.app.mqtt.Topics()
	qos := c.app.mqtt.QoS()

	printEvent := func(topic string, payload []byte) error {
		fmt.Fprintf(c.out, "%s %s\n", topic, strings.TrimSpace(string(payload)))
		return nil
	}
	feeds := []string{topics.AllChanges(), topics.AllErrors()}
	if err := c.app.mqtt.Subscribe(qos, printEvent, feeds...); err != nil {
		return err
	}
	defer func() {
		if err := c.app.mqtt.Unsubscribe(feeds...); err != nil {
			c.app.log.Warn("unsubscribe failed", "topics", feeds, "error", err)
		}
	}()

	c.app.log.Info("watching for events", "prefix", topics.Prefix)
	<-ctx.Done()
	return nil
}

// serve runs the monitoring API until ctx is cancelled.
func (c *command) serve(ctx context.Context) error {
	cfg := c.app.cfg
	cfg.API.Enabled = true
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   c.app.log.Component("api"),
		Operator: c.app.op,
		Metrics:  c.app.metrics,
		MQTT:     c.app.mqtt,
		InfluxDB: c.app.influx,
		Version:  version,

		FileStatsInterval: time.Duration(cfg.InfluxDB.FileStatsInterval) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	c.app.addObserver(srv.Hub())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	fmt.Fprintf(c.out, "listening on %s\n", srv.Addr())

	<-ctx.Done()
	return srv.Close()
}
