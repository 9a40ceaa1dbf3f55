package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidPath = errors.New("invalid document path")

// PostgresDocumentStore keeps the remote tree as one JSONB row per written
// path. A Put replaces the whole subtree under its path; a Get assembles the
// row at path with every row beneath it.
type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDocumentStore(pool *pgxpool.Pool) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pool}
}

func (s *PostgresDocumentStore) Put(ctx context.Context, path string, value any) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM documents WHERE path = $1 OR left(path, length($2)) = $2`,
		path, path+"/")
	if err != nil {
		return fmt.Errorf("failed to clear subtree: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (path, value, updated_at) VALUES ($1, $2, NOW())`,
		path, data)
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}
	return nil
}

// Delete removes path and everything beneath it. Deleting a missing path is
// not an error.
func (s *PostgresDocumentStore) Delete(ctx context.Context, path string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`DELETE FROM documents WHERE path = $1 OR left(path, length($2)) = $2`,
		path, path+"/")
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT path, value FROM documents WHERE path = $1 OR left(path, length($2)) = $2`,
		path, path+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var (
			p     string
			value []byte
		)
		if err := rows.Scan(&p, &value); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs[p] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return assembleTree(path, docs)
}

func cleanPath(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return path, nil
}

// assembleTree merges the documents at and under root into one JSON value.
// Deeper rows win over the object stored at a shallower path.
func assembleTree(root string, docs map[string]json.RawMessage) (json.RawMessage, error) {
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	if value, ok := docs[root]; ok && len(docs) == 1 {
		return value, nil
	}

	paths := make([]string, 0, len(docs))
	for p := range docs {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		return strings.Count(paths[i], "/") < strings.Count(paths[j], "/")
	})

	tree := map[string]any{}
	for _, p := range paths {
		var value any
		if err := json.Unmarshal(docs[p], &value); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", p, err)
		}

		if p == root {
			if obj, ok := value.(map[string]any); ok {
				tree = obj
			}
			continue
		}

		node := tree
		segments := strings.Split(strings.TrimPrefix(p, root+"/"), "/")
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[seg] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = value
	}

	return json.Marshal(tree)
}
