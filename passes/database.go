package passes

import (
	"context"
	"fmt"
	"net"
	"strconv"

	framework "github.com/vgmdb/framework"
	"github.com/vgmdb/framework/tree"
)

const databaseSection = "database"

// Database drivers.
const (
	DriverMySQL  = "mysql"
	DriverPgSQL  = "pgsql"
	DriverSQLite = "sqlite"
)

type driverDefaults struct {
	port    int64
	charset string
}

var databaseDrivers = map[string]driverDefaults{
	DriverMySQL:  {port: 3306, charset: "utf8mb4"},
	DriverPgSQL:  {port: 5432, charset: "UTF8"},
	DriverSQLite: {},
}

var driverAliases = map[string]string{
	"pdo_mysql":  DriverMySQL,
	"mysqli":     DriverMySQL,
	"pdo_pgsql":  DriverPgSQL,
	"postgres":   DriverPgSQL,
	"postgresql": DriverPgSQL,
	"pdo_sqlite": DriverSQLite,
	"sqlite3":    DriverSQLite,
}

// connectionKeys are the canonical connection keys, in output order.
var connectionKeys = []string{"driver", "host", "port", "dbname", "user", "password", "charset", "path", "dsn"}

// DatabasePass expands the database section into named connections.
//
// Both of these
//
//	database: { driver: mysql, dbname: vgmdb }
//	database: { connections: { default: { driver: mysql, dbname: vgmdb } } }
//
// become
//
//	database:
//	  default_connection: default
//	  connections:
//	    default: { driver: mysql, host: localhost, port: 3306, dbname: vgmdb, charset: utf8mb4, dsn: ... }
type DatabasePass struct{}

func (p *DatabasePass) Name() string { return "database" }

func (p *DatabasePass) Apply(_ context.Context, t *tree.Tree) (*tree.Tree, error) {
	raw, ok := t.Get(databaseSection)
	if !ok {
		return t, nil
	}

	var c framework.Checker
	section, ok := c.Mapping(databaseSection, raw)
	if !ok {
		return nil, c.Err()
	}

	out := tree.New()
	connections := tree.New()

	rawConns, full := section.Get("connections")
	if full {
		conns, ok := c.Mapping(path(databaseSection, "connections"), rawConns)
		if ok {
			if conns.Len() == 0 {
				c.Fail(path(databaseSection, "connections"), framework.ErrCodeRequired, "at least one connection is required")
			}
			for _, name := range conns.Keys() {
				v, _ := conns.Get(name)
				keyPath := path(databaseSection, "connections", name)
				if conn, ok := c.Mapping(keyPath, v); ok {
					connections.Set(name, normalizeConnection(&c, keyPath, conn))
				}
			}
		}
	} else {
		// Shorthand: the section itself is the only connection.
		shorthand := tree.New()
		copyExtras(shorthand, section, "default_connection")
		connections.Set("default", normalizeConnection(&c, databaseSection, shorthand))
	}

	defaultName := ""
	if v, ok := section.Get("default_connection"); ok && v != nil {
		defaultName, _ = c.String(path(databaseSection, "default_connection"), v, true)
		if defaultName != "" && connections.Len() > 0 && !connections.Has(defaultName) {
			c.Fail(path(databaseSection, "default_connection"), framework.ErrCodeReference,
				fmt.Sprintf("connection %q is not defined", defaultName))
		}
	} else if keys := connections.Keys(); len(keys) > 0 {
		defaultName = keys[0]
	}

	if err := c.Err(); err != nil {
		return nil, err
	}

	out.Set("default_connection", defaultName)
	out.Set("connections", connections)
	if full {
		copyExtras(out, section, "default_connection", "connections")
	}

	t.Set(databaseSection, out)
	return t, nil
}

func mustGet(t *tree.Tree, key string) any {
	v, _ := t.Get(key)
	return v
}

func normalizeConnection(c *framework.Checker, keyPath string, conn *tree.Tree) *tree.Tree {
	out := tree.New()

	driver, ok := c.String(path(keyPath, "driver"), mustGet(conn, "driver"), true)
	if !ok {
		return out
	}
	if canonical, ok := driverAliases[driver]; ok {
		driver = canonical
	}
	defaults, ok := databaseDrivers[driver]
	if !ok {
		c.OneOf(path(keyPath, "driver"), driver, DriverMySQL, DriverPgSQL, DriverSQLite)
		return out
	}
	out.Set("driver", driver)

	user, _ := c.String(path(keyPath, "user"), mustGet(conn, "user"), false)
	password, _ := c.String(path(keyPath, "password"), mustGet(conn, "password"), false)

	var dsn string
	if driver == DriverSQLite {
		dbPath, _ := c.String(path(keyPath, "path"), mustGet(conn, "path"), false)
		if dbPath == "" {
			dbPath = ":memory:"
		}
		out.Set("path", dbPath)
		dsn = "file:" + dbPath
	} else {
		host, _ := c.String(path(keyPath, "host"), mustGet(conn, "host"), false)
		if host == "" {
			host = "localhost"
		}
		port := defaults.port
		if v := mustGet(conn, "port"); v != nil {
			port, _ = c.Int(path(keyPath, "port"), v, 1, 65535)
		}
		dbname, _ := c.String(path(keyPath, "dbname"), mustGet(conn, "dbname"), true)
		charset, _ := c.String(path(keyPath, "charset"), mustGet(conn, "charset"), false)
		if charset == "" {
			charset = defaults.charset
		}

		out.Set("host", host)
		out.Set("port", port)
		out.Set("dbname", dbname)
		setIf(out, "user", user)
		setIf(out, "password", password)
		out.Set("charset", charset)

		addr := net.JoinHostPort(host, strconv.FormatInt(port, 10))
		if driver == DriverMySQL {
			dsn = fmt.Sprintf("tcp(%s)/%s?charset=%s", addr, dbname, charset)
		} else {
			dsn = fmt.Sprintf("host=%s port=%d dbname=%s client_encoding=%s", host, port, dbname, charset)
		}
	}
	if driver == DriverSQLite {
		setIf(out, "user", user)
		setIf(out, "password", password)
	}

	if v := mustGet(conn, "dsn"); v != nil {
		explicit, _ := c.String(path(keyPath, "dsn"), v, false)
		if explicit != "" {
			dsn = explicit
		}
	}
	out.Set("dsn", dsn)

	copyExtras(out, conn, connectionKeys...)
	return out
}
