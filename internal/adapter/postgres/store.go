package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/AgentForge/internal/codec"
	"github.com/Strob0t/AgentForge/internal/domain"
	"github.com/Strob0t/AgentForge/internal/domain/agent"
	"github.com/Strob0t/AgentForge/internal/port/llm"
	"github.com/Strob0t/AgentForge/internal/port/tool"
)

// Store implements statestore.Store using PostgreSQL. Contexts are persisted
// in their codec document form as JSONB, with the state lifted into a column
// for filtered listing. The registries are needed to reconstruct contexts on
// read.
type Store struct {
	pool  *pgxpool.Pool
	llms  *llm.Registry
	tools *tool.Registry
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, llms *llm.Registry, tools *tool.Registry) *Store {
	return &Store{pool: pool, llms: llms, tools: tools}
}

// Save persists the full context, upserting on agent_id.
func (s *Store) Save(ctx context.Context, ac *agent.Context) error {
	data, err := codec.Marshal(codec.Serialize(ac))
	if err != nil {
		return fmt.Errorf("save agent %s: %w", ac.AgentID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO agent_contexts (agent_id, state, doc, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (agent_id) DO UPDATE
		 SET state = EXCLUDED.state, doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		ac.AgentID, string(ac.State), data, ac.CreatedAt, ac.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", ac.AgentID, err)
	}
	return nil
}

// Load returns the context for agentID.
func (s *Store) Load(ctx context.Context, agentID string) (*agent.Context, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM agent_contexts WHERE agent_id = $1`, agentID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load agent %s: %w", agentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load agent %s: %w", agentID, err)
	}
	return s.reconstruct(agentID, data)
}

// List returns all stored contexts, newest first.
func (s *Store) List(ctx context.Context) ([]*agent.Context, error) {
	return s.query(ctx,
		`SELECT agent_id, doc FROM agent_contexts ORDER BY created_at DESC`)
}

// ListRunning returns contexts in running or hitl_* states.
func (s *Store) ListRunning(ctx context.Context) ([]*agent.Context, error) {
	return s.query(ctx,
		`SELECT agent_id, doc FROM agent_contexts
		 WHERE state = 'running' OR state LIKE 'hitl_%'
		 ORDER BY created_at DESC`)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]*agent.Context, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []*agent.Context
	for rows.Next() {
		var agentID string
		var data []byte
		if err := rows.Scan(&agentID, &data); err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		ac, err := s.reconstruct(agentID, data)
		if err != nil {
			return nil, err
		}
		out = append(out, ac)
	}
	return out, rows.Err()
}

// Delete removes the given agents and their iteration records, best-effort:
// missing ids simply affect zero rows.
func (s *Store) Delete(ctx context.Context, agentIDs ...string) error {
	if len(agentIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM agent_iterations WHERE agent_id = ANY($1)`, agentIDs); err != nil {
		return fmt.Errorf("delete iterations: %w", err)
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM agent_contexts WHERE agent_id = ANY($1)`, agentIDs); err != nil {
		return fmt.Errorf("delete contexts: %w", err)
	}
	return nil
}

// SaveIteration appends one immutable iteration record. The unique
// (agent_id, number) constraint enforces strict monotonic numbering.
func (s *Store) SaveIteration(ctx context.Context, it *agent.Iteration) error {
	functions, err := marshalFunctions(it.Functions)
	if err != nil {
		return fmt.Errorf("save iteration %s/%d: %w", it.AgentID, it.Number, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO agent_iterations
		   (agent_id, execution_id, number, prompt, response, functions, cost, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.AgentID, it.ExecutionID, it.Number, it.Prompt, it.Response,
		functions, it.Cost, it.Error, it.CreatedAt)
	if err != nil {
		return fmt.Errorf("save iteration %s/%d: %w", it.AgentID, it.Number, err)
	}
	return nil
}

// LoadIterations returns all iteration records for agentID in order.
func (s *Store) LoadIterations(ctx context.Context, agentID string) ([]agent.Iteration, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT agent_id, execution_id, number, prompt, response, functions, cost, error, created_at
		 FROM agent_iterations WHERE agent_id = $1 ORDER BY number`, agentID)
	if err != nil {
		return nil, fmt.Errorf("load iterations %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []agent.Iteration
	for rows.Next() {
		var it agent.Iteration
		var functions []byte
		if err := rows.Scan(&it.AgentID, &it.ExecutionID, &it.Number, &it.Prompt,
			&it.Response, &functions, &it.Cost, &it.Error, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan iteration row: %w", err)
		}
		if it.Functions, err = unmarshalFunctions(functions); err != nil {
			return nil, fmt.Errorf("load iterations %s: %w", agentID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *Store) reconstruct(agentID string, data []byte) (*agent.Context, error) {
	doc, err := codec.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode agent %s: %w", agentID, err)
	}
	ac, err := codec.Deserialize(doc, s.llms, s.tools)
	if err != nil {
		return nil, fmt.Errorf("reconstruct agent %s: %w", agentID, err)
	}
	return ac, nil
}
