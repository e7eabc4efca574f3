// Package graph records lead lineage in Neo4j/Memgraph over Bolt
package graph

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

type Client struct {
	driver neo4j.DriverWithContext
	logger ectologger.Logger
}

// Config addresses the Bolt endpoint. An empty Username connects without auth, as a
// default Memgraph does.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (c Config) URI() string {
	return "bolt://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewClient builds the driver. The driver connects lazily; call VerifyConnectivity to
// fail fast.
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI(), auth)
	if err != nil {
		return nil, fmt.Errorf("graph driver for %s: %w", cfg.URI(), err)
	}
	logger.WithField("uri", cfg.URI()).Debug("Graph driver created")

	return &Client{driver: driver, logger: logger}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// VerifyConnectivity doubles as the health probe
func (c *Client) VerifyConnectivity(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// Write runs cypher in a managed write transaction and discards the records
func (c *Client) Write(ctx context.Context, cypher string, params map[string]any) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.Write")
	defer span.End()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

// ReadStrings runs cypher in a managed read transaction and collects one string column
func (c *Client) ReadStrings(ctx context.Context, cypher string, params map[string]any, column string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Client.ReadStrings")
	defer span.End()

	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		values := make([]string, 0, len(records))
		for _, rec := range records {
			v, _, err := neo4j.GetRecordValue[string](rec, column)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}
