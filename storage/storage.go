package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"deadline-tasks/domain"
)

// DefaultPartition is the partition holding every task row.
const DefaultPartition = "tasks"

const edmDateTime = "Edm.DateTime"

type tableClient interface {
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	NewListEntitiesPager(listOptions *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
}

// Storage keeps tasks in an Azure Table Storage table.
type Storage struct {
	table     tableClient
	partition string
	newID     func() string
}

// New creates a Storage instance from the given connection string. The table
// client does not retry failed requests; callers see the first error.
func New(connStr, tasksTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries: -1,
				TryTimeout: 30 * time.Second,
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, fmt.Errorf("table service: %w", err)
	}
	return &Storage{
		table:     svc.NewClient(tasksTable),
		partition: DefaultPartition,
		newID:     uuid.NewString,
	}, nil
}

type taskEntity struct {
	PartitionKey string    `json:"PartitionKey"`
	RowKey       string    `json:"RowKey"`
	Title        string    `json:"Title"`
	Description  string    `json:"Description"`
	Email        string    `json:"Email"`
	Deadline     time.Time `json:"Deadline"`
	DeadlineType string    `json:"Deadline@odata.type,omitempty"`
	Done         bool      `json:"Done"`
}

type doneUpdate struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Done         bool   `json:"Done"`
}

func encodeTaskEntity(partition string, t domain.Task) ([]byte, error) {
	return sonic.Marshal(taskEntity{
		PartitionKey: partition,
		RowKey:       t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Email:        t.Email,
		Deadline:     t.Deadline.UTC(),
		DeadlineType: edmDateTime,
		Done:         t.Done,
	})
}

func decodeTaskEntity(data []byte) (domain.Task, error) {
	var ent taskEntity
	if err := sonic.Unmarshal(data, &ent); err != nil {
		return domain.Task{}, err
	}
	return domain.Task{
		ID:          ent.RowKey,
		Title:       ent.Title,
		Description: ent.Description,
		Email:       ent.Email,
		Deadline:    ent.Deadline.UTC(),
		Done:        ent.Done,
	}, nil
}

// CreateTask stores a pending task and returns its generated ID.
func (s *Storage) CreateTask(ctx context.Context, in domain.NewTask) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	task := in.Task(s.newID())
	payload, err := encodeTaskEntity(s.partition, task)
	if err != nil {
		return "", err
	}
	if _, err := s.table.AddEntity(ctx, payload, nil); err != nil {
		return "", fmt.Errorf("add task: %w", err)
	}
	return task.ID, nil
}

// ListTasks retrieves every task in the order the table returns them.
func (s *Storage) ListTasks(ctx context.Context) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + s.partition + "'"
	pager := s.table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for _, e := range resp.Entities {
			task, err := decodeTaskEntity(e)
			if err != nil {
				return nil, fmt.Errorf("decode task: %w", err)
			}
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

// GetTask retrieves a single task.
func (s *Storage) GetTask(ctx context.Context, id string) (domain.Task, error) {
	if !validRowKey(id) {
		return domain.Task{}, domain.ErrNotFound
	}
	ent, err := s.table.GetEntity(ctx, s.partition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Task{}, domain.ErrNotFound
		}
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return decodeTaskEntity(ent.Value)
}

// MarkDone flags an existing task as completed. Marking a completed task
// again succeeds; an unknown ID yields domain.ErrNotFound.
func (s *Storage) MarkDone(ctx context.Context, id string) error {
	if !validRowKey(id) {
		return domain.ErrNotFound
	}
	payload, err := sonic.Marshal(doneUpdate{PartitionKey: s.partition, RowKey: id, Done: true})
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		if isNotFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("mark task done: %w", err)
	}
	return nil
}

// validRowKey rejects IDs table storage cannot address.
func validRowKey(id string) bool {
	return id != "" && !strings.ContainsAny(id, "/\\#?")
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
