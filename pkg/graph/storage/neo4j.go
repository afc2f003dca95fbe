package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/kgraph-mcp/pkg/graph"
)

// fuzzyIndexName is the fulltext index used for similarity lookups.
const fuzzyIndexName = "entity_name_index"

// entityLabels are the labels that get uniqueness constraints and fulltext
// indexing out of the box. Caller-supplied labels outside this set still
// work; they just rely on resolver logic alone for deduplication.
var entityLabels = []string{"Person", "Organization", "Location", "Topic"}

// identifierPattern is the allow-list for caller-supplied labels and
// relationship types. They are interpolated into Cypher, so anything outside
// this pattern is rejected before it reaches the query text.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Config holds Neo4j connection settings.
type Config struct {
	URI            string
	Username       string
	Password       string
	Database       string
	MaxPoolSize    int
	ConnectTimeout time.Duration
}

// Neo4jStore implements graph.Store on a Neo4j database. The driver owns a
// process-wide connection pool; every method opens a request-scoped session
// bound to the caller's context, so a cancelled context aborts the in-flight
// round trip.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *logrus.Logger
}

// NewNeo4jStore creates a store and verifies connectivity once.
func NewNeo4jStore(ctx context.Context, cfg Config, logger *logrus.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""), func(c *neo4j.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		if cfg.ConnectTimeout > 0 {
			c.SocketConnectTimeout = cfg.ConnectTimeout
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "create Neo4j driver")
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, classify(errors.Wrap(err, "verify Neo4j connectivity"))
	}

	logger.WithField("uri", cfg.URI).Info("Connected to Neo4j")
	return &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		logger:   logger,
	}, nil
}

// Close releases the driver's connection pool.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureDocument implements graph.Store.
func (s *Neo4jStore) EnsureDocument(ctx context.Context, url string) (graph.DocumentRef, error) {
	cypher := `
		MERGE (d:Document {url: $url})
		ON CREATE SET d.created_at = timestamp()
	`
	if err := s.write(ctx, cypher, map[string]interface{}{"url": url}); err != nil {
		return "", err
	}
	return graph.DocumentRef(url), nil
}

// FindExactNode implements graph.Store.
func (s *Neo4jStore) FindExactNode(ctx context.Context, label, name string) (string, bool, error) {
	if err := validateIdentifier(label); err != nil {
		return "", false, err
	}

	cypher := fmt.Sprintf("MATCH (n:%s) WHERE n.name = $name RETURN n.name AS name LIMIT 1", label)
	records, err := s.read(ctx, cypher, map[string]interface{}{"name": name})
	if err != nil {
		return "", false, err
	}
	if len(records) == 0 {
		return "", false, nil
	}

	stored, err := stringValue(records[0], "name")
	if err != nil {
		return "", false, errors.Wrap(err, "exact lookup")
	}
	return stored, true, nil
}

// FindFuzzyNode implements graph.Store. The trailing "~" turns the lookup
// into a Lucene fuzzy query against the fulltext index; an error usually
// means the index has not been created yet.
func (s *Neo4jStore) FindFuzzyNode(ctx context.Context, label, name string) (graph.FuzzyMatch, bool, error) {
	cypher := `
		CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
		WHERE labels(node)[0] = $label
		RETURN node.name AS name, score
		ORDER BY score DESC LIMIT 1
	`
	params := map[string]interface{}{
		"index": fuzzyIndexName,
		"query": name + "~",
		"label": label,
	}

	records, err := s.read(ctx, cypher, params)
	if err != nil {
		return graph.FuzzyMatch{}, false, err
	}
	if len(records) == 0 {
		return graph.FuzzyMatch{}, false, nil
	}

	matched, err := stringValue(records[0], "name")
	if err != nil {
		return graph.FuzzyMatch{}, false, errors.Wrap(err, "fuzzy lookup")
	}
	score, err := floatValue(records[0], "score")
	if err != nil {
		return graph.FuzzyMatch{}, false, errors.Wrap(err, "fuzzy lookup")
	}
	return graph.FuzzyMatch{
		Name:  matched,
		Score: score,
	}, true, nil
}

// MergeNode implements graph.Store. Properties are unioned onto the node on
// both the create and update paths, last write wins per key.
func (s *Neo4jStore) MergeNode(ctx context.Context, label, name string, props map[string]interface{}) error {
	if err := validateIdentifier(label); err != nil {
		return err
	}

	cypher := fmt.Sprintf(`
		MERGE (n:%s {name: $name})
		ON CREATE SET n += $props
		ON MATCH SET n += $props
	`, label)
	return s.write(ctx, cypher, map[string]interface{}{
		"name":  name,
		"props": emptyIfNil(props),
	})
}

// MergeEdge implements graph.Store. Both endpoints must already exist; a
// missing endpoint yields graph.ErrEndpointNotFound instead of silently
// writing nothing. Edge properties are set only at creation.
func (s *Neo4jStore) MergeEdge(ctx context.Context, relType, source, target string, props map[string]interface{}) error {
	if err := validateIdentifier(relType); err != nil {
		return err
	}

	cypher := fmt.Sprintf(`
		MATCH (source {name: $source})
		MATCH (target {name: $target})
		MERGE (source)-[r:%s]->(target)
		ON CREATE SET r += $props
		RETURN count(r) AS linked
	`, relType)
	params := map[string]interface{}{
		"source": source,
		"target": target,
		"props":  emptyIfNil(props),
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	linked, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		count, _ := record.Get("linked")
		return count, nil
	})
	if err != nil {
		return classify(err)
	}
	if count, ok := linked.(int64); !ok || count == 0 {
		return errors.Wrapf(graph.ErrEndpointNotFound, "%q or %q", source, target)
	}
	return nil
}

// LinkMention implements graph.Store.
func (s *Neo4jStore) LinkMention(ctx context.Context, doc graph.DocumentRef, name string) error {
	cypher := `
		MATCH (d:Document {url: $url})
		MATCH (n {name: $name})
		MERGE (d)-[:MENTIONS]->(n)
	`
	return s.write(ctx, cypher, map[string]interface{}{
		"url":  string(doc),
		"name": name,
	})
}

// SetupSchema implements graph.Store. Safe to run repeatedly; invoked from
// the deployment-time bootstrap, never from the ingestion hot path.
func (s *Neo4jStore) SetupSchema(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT document_url_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.url IS UNIQUE",
	}
	for _, label := range entityLabels {
		statements = append(statements, fmt.Sprintf(
			"CREATE CONSTRAINT %s_name_unique IF NOT EXISTS FOR (n:%s) REQUIRE n.name IS UNIQUE",
			strings.ToLower(label), label,
		))
	}
	statements = append(statements, fmt.Sprintf(
		"CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:%s) ON EACH [n.name]",
		fuzzyIndexName, strings.Join(entityLabels, "|"),
	))

	for _, stmt := range statements {
		if err := s.write(ctx, stmt, nil); err != nil {
			return errors.Wrapf(err, "apply schema statement %q", stmt)
		}
		s.logger.WithField("statement", stmt).Info("Applied schema statement")
	}
	return nil
}

// Stats implements graph.Store.
func (s *Neo4jStore) Stats(ctx context.Context) (graph.GraphStats, error) {
	stats := graph.GraphStats{
		Nodes: make(map[string]int64),
		Edges: make(map[string]int64),
	}

	nodeRecords, err := s.read(ctx, `
		MATCH (n)
		UNWIND labels(n) AS label
		RETURN label, count(*) AS count
	`, nil)
	if err != nil {
		return stats, err
	}
	for _, record := range nodeRecords {
		label, _ := record.Get("label")
		count, _ := record.Get("count")
		stats.Nodes[label.(string)] = count.(int64)
	}

	edgeRecords, err := s.read(ctx, `
		MATCH ()-[r]->()
		RETURN type(r) AS type, count(*) AS count
	`, nil)
	if err != nil {
		return stats, err
	}
	for _, record := range edgeRecords {
		relType, _ := record.Get("type")
		count, _ := record.Get("count")
		stats.Edges[relType.(string)] = count.(int64)
	}

	return stats, nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *Neo4jStore) write(ctx context.Context, cypher string, params map[string]interface{}) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return classify(err)
}

func (s *Neo4jStore) read(ctx context.Context, cypher string, params map[string]interface{}) ([]*neo4j.Record, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, classify(err)
	}
	return records.([]*neo4j.Record), nil
}

// validateIdentifier rejects labels and relationship types that are not
// plain alphanumeric/underscore identifiers. They end up interpolated into
// Cypher, and this allow-list is what keeps that from becoming structural
// injection.
func validateIdentifier(identifier string) error {
	if !identifierPattern.MatchString(identifier) {
		return errors.Wrapf(graph.ErrInvalidIdentifier, "%q", identifier)
	}
	return nil
}

// classify maps driver failures onto the engine's error taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Wrap(graph.ErrTimeout, err.Error())
	}

	var serverErr *db.Neo4jError
	if errors.As(err, &serverErr) {
		if strings.Contains(serverErr.Code, "ConstraintValidationFailed") {
			return errors.Wrap(graph.ErrConstraintConflict, serverErr.Msg)
		}
		return err
	}

	if neo4j.IsConnectivityError(err) {
		return errors.Wrap(graph.ErrStoreUnavailable, err.Error())
	}
	return err
}

// stringValue reads a string column from a record. Nodes written outside
// this adapter may carry unexpected value types, so the assertion is checked
// rather than trusted.
func stringValue(record *neo4j.Record, key string) (string, error) {
	value, ok := record.Get(key)
	if !ok {
		return "", errors.Errorf("record has no %q column", key)
	}
	s, ok := value.(string)
	if !ok {
		return "", errors.Errorf("%q column holds %T, want string", key, value)
	}
	return s, nil
}

func floatValue(record *neo4j.Record, key string) (float64, error) {
	value, ok := record.Get(key)
	if !ok {
		return 0, errors.Errorf("record has no %q column", key)
	}
	f, ok := value.(float64)
	if !ok {
		return 0, errors.Errorf("%q column holds %T, want float64", key, value)
	}
	return f, nil
}

func emptyIfNil(props map[string]interface{}) map[string]interface{} {
	if props == nil {
		return map[string]interface{}{}
	}
	return props
}
