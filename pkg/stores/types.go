package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

// Draft is an autosaved copy of a canvas, kept locally so an editing
// session can be restored after a restart.
type Draft struct {
	ID          string    `json:"id"`
	WorkflowID  string    `json:"workflow_id"`
	ProjectName string    `json:"project_name"`
	Definition  string    `json:"definition"` // JSON workflow definition
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewDraft encodes def as a new draft of workflowID.
func NewDraft(workflowID, projectName string, def *workflow.Definition) (*Draft, error) {
	// Stored documents always carry both lists.
	if def.Nodes == nil || def.Links == nil {
		cp := *def
		if cp.Nodes == nil {
			cp.Nodes = []workflow.NodeDefinition{}
		}
		if cp.Links == nil {
			cp.Links = []workflow.Link{}
		}
		def = &cp
	}

	data, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("failed to encode draft: %w", err)
	}
	now := time.Now().UTC()
	return &Draft{
		ID:          uuid.NewString(),
		WorkflowID:  workflowID,
		ProjectName: projectName,
		Definition:  string(data),
		NodeCount:   len(def.Nodes),
		EdgeCount:   len(def.Links),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Decode parses and validates the stored definition.
func (d *Draft) Decode() (*workflow.Definition, error) {
	def, err := workflow.Decode([]byte(d.Definition), workflow.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("draft %s: %w", d.ID, err)
	}
	return def, nil
}

// AuditEntry is one entry of the command audit trail.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`              // event type, e.g. "node.deleted"
	Actor     string    `json:"actor"`               // user or process identifier
	TargetID  *string   `json:"target_id,omitempty"` // node or edge id
	Details   *string   `json:"details,omitempty"`   // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// Store defines the persistence layer for drafts and the audit trail.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Draft operations
	SaveDraft(ctx context.Context, draft *Draft) error
	GetDraft(ctx context.Context, id string) (*Draft, error)
	LatestDraft(ctx context.Context, workflowID string) (*Draft, error)
	ListDrafts(ctx context.Context, workflowID *string, limit, offset int) ([]*Draft, error)
	DeleteDraft(ctx context.Context, id string) error
	PruneDrafts(ctx context.Context, workflowID string, keep int) (int64, error)

	// Audit operations
	CreateAuditEntry(ctx context.Context, entry *AuditEntry) error
	ListAuditEntries(ctx context.Context, action *string, targetID *string, limit, offset int) ([]*AuditEntry, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
