// Package trash keeps the trashed and archived survey collections (and the
// trashed workspaces) in step with the backend across restore and purge.
package trash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"survey-admin/internal/alert"
	"survey-admin/internal/model"
)

const (
	DefaultRefetchDelay = 500 * time.Millisecond
	DefaultConcurrency  = 6
)

var (
	ErrBusy   = errors.New("operation already in progress")
	ErrClosed = errors.New("reconciler closed")
)

type NotFoundError struct {
	Tab Tab
	ID  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Tab, e.ID)
}

// Remote is the backend surface the reconciler reads and mutates.
type Remote interface {
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)
	ListAllWorkspaces(ctx context.Context) ([]model.Workspace, error)
	ListSurveys(ctx context.Context, workspaceID string) ([]model.Survey, error)
	ListArchivedSurveys(ctx context.Context) (model.ArchivedPage, error)

	SetSurveyStatus(ctx context.Context, id string, status model.SurveyStatus) error
	ArchiveSurvey(ctx context.Context, id string) error
	PurgeSurvey(ctx context.Context, id string) error
	TrashWorkspace(ctx context.Context, id string) error
	RestoreWorkspace(ctx context.Context, id string) error
	PurgeWorkspace(ctx context.Context, id string) error
}

type Tab string

const (
	TabTrash      Tab = "trash"
	TabArchive    Tab = "archive"
	TabWorkspaces Tab = "workspaces"
)

var Tabs = []Tab{TabTrash, TabArchive, TabWorkspaces}

func ParseTab(s string) (Tab, error) {
	switch Tab(strings.ToLower(strings.TrimSpace(s))) {
	case "", TabTrash:
		return TabTrash, nil
	case TabArchive:
		return TabArchive, nil
	case TabWorkspaces, "workspace":
		return TabWorkspaces, nil
	default:
		return "", fmt.Errorf("unknown tab: %s (want trash|archive|workspaces)", s)
	}
}

func (t Tab) kind() model.TargetKind {
	if t == TabWorkspaces {
		return model.TargetWorkspace
	}
	return model.TargetSurvey
}

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notification is a transient, dismissible message for the user.
type Notification struct {
	Severity Severity
	Message  string
	At       time.Time
}

type Options struct {
	Remote Remote
	Broker *alert.Broker
	Logger *slog.Logger

	// RefetchDelay is how long after a successful mutation the full
	// refetch starts.
	RefetchDelay time.Duration

	// Concurrency bounds the per-workspace survey fetches.
	Concurrency int
}

// LoadResult reports one population pass. Each branch fails on its own.
type LoadResult struct {
	Generation    uint64
	Stale         bool
	TrashErr      error
	ArchiveErr    error
	WorkspacesErr error
}

func (r LoadResult) Err() error {
	return errors.Join(r.TrashErr, r.ArchiveErr, r.WorkspacesErr)
}

// Snapshot is a copy of the reconciler's collections.
type Snapshot struct {
	Active     []model.TrashRow
	Trashed    []model.TrashRow
	Archived   []model.TrashRow
	Workspaces []model.TrashedWorkspace

	Busy       map[string]bool
	Loading    bool
	Loaded     bool
	Generation uint64

	TrashErr      error
	ArchiveErr    error
	WorkspacesErr error
}

func (s Snapshot) Rows(tab Tab) []model.TrashRow {
	switch tab {
	case TabTrash:
		return s.Trashed
	case TabArchive:
		return s.Archived
	default:
		return nil
	}
}

func (s Snapshot) IsBusy(kind model.TargetKind, id string) bool {
	return s.Busy[busyKey(kind, id)]
}

func busyKey(kind model.TargetKind, id string) string {
	return string(kind) + ":" + id
}

type entityKey struct {
	kind model.TargetKind
	id   string
}

type collection int

const (
	collNone collection = iota
	collActive
	collTrashed
	collArchived
	collWorkspaces
)

// tombstone records a local mutation. Loads that started before seq must
// not show the entity anywhere except keep.
type tombstone struct {
	seq  uint64
	keep collection
}

type Reconciler struct {
	remote      Remote
	broker      *alert.Broker
	log         *slog.Logger
	delay       time.Duration
	concurrency int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	active     []model.TrashRow
	trashed    []model.TrashRow
	archived   []model.TrashRow
	workspaces []model.TrashedWorkspace
	lastLoad   LoadResult
	loaded     bool

	loadSeq    uint64
	appliedGen uint64
	loading    int
	mutSeq     uint64
	tombs      map[entityKey]tombstone
	busy       map[entityKey]bool

	refetchPending bool

	changes    chan struct{}
	notes      chan Notification
	reconciled chan LoadResult
}

func New(opts Options) *Reconciler {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	broker := opts.Broker
	if broker == nil {
		broker = alert.New(log)
	}
	delay := opts.RefetchDelay
	if delay <= 0 {
		delay = DefaultRefetchDelay
	}
	conc := opts.Concurrency
	if conc <= 0 {
		conc = DefaultConcurrency
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		remote:      opts.Remote,
		broker:      broker,
		log:         log,
		delay:       delay,
		concurrency: conc,
		ctx:         ctx,
		cancel:      cancel,
		tombs:       map[entityKey]tombstone{},
		busy:        map[entityKey]bool{},
		changes:     make(chan struct{}, 1),
		notes:       make(chan Notification, 64),
		reconciled:  make(chan LoadResult, 8),
	}
}

// Changes signals after every state change. Signals coalesce.
func (r *Reconciler) Changes() <-chan struct{} { return r.changes }

// Notifications delivers user-facing messages in order.
func (r *Reconciler) Notifications() <-chan Notification { return r.notes }

// Reconciled delivers the result of each post-mutation refetch.
func (r *Reconciler) Reconciled() <-chan LoadResult { return r.reconciled }

func (r *Reconciler) Broker() *alert.Broker { return r.broker }

func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	busy := make(map[string]bool, len(r.busy))
	for k := range r.busy {
		busy[busyKey(k.kind, k.id)] = true
	}
	return Snapshot{
		Active:        append([]model.TrashRow(nil), r.active...),
		Trashed:       append([]model.TrashRow(nil), r.trashed...),
		Archived:      append([]model.TrashRow(nil), r.archived...),
		Workspaces:    append([]model.TrashedWorkspace(nil), r.workspaces...),
		Busy:          busy,
		Loading:       r.loading > 0,
		Loaded:        r.loaded,
		Generation:    r.appliedGen,
		TrashErr:      r.lastLoad.TrashErr,
		ArchiveErr:    r.lastLoad.ArchiveErr,
		WorkspacesErr: r.lastLoad.WorkspacesErr,
	}
}

func (r *Reconciler) Busy(kind model.TargetKind, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy[entityKey{kind, id}]
}

// Wait blocks until every spawned operation and pending refetch finishes.
func (r *Reconciler) Wait() { r.wg.Wait() }

// Close detaches the reconciler. Results of in-flight requests are dropped
// and the pending refetch is cancelled.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.changes)
	close(r.notes)
	close(r.reconciled)
	r.mu.Unlock()
	r.cancel()
}

func (r *Reconciler) signalLocked() {
	if r.closed {
		return
	}
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

func (r *Reconciler) notifyLocked(sev Severity, msg string) {
	if r.closed {
		return
	}
	n := Notification{Severity: sev, Message: msg, At: time.Now()}
	select {
	case r.notes <- n:
	default:
		// Drop the oldest so the newest message is never lost.
		select {
		case <-r.notes:
		default:
		}
		select {
		case r.notes <- n:
		default:
		}
	}
}
