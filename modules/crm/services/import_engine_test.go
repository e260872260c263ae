package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/crm-exchange/modules/crm/domain/document"
	"github.com/iota-uz/crm-exchange/modules/crm/domain/importjob"
	"github.com/iota-uz/crm-exchange/pkg/eventbus"
)

var leadsCSV = importjob.SourceFile{
	Name: "leads.csv",
	Data: []byte("Full Name,Email\nAda Lovelace,ada@example.com\n"),
}

type importHarness struct {
	api      *fakeAPI
	engine   *ImportEngine
	bus      eventbus.EventBus
	mu       sync.Mutex
	states   []ImportState
	complete []*ImportCompleted
	failed   []*ImportFailed
}

func newImportHarness(t *testing.T, api *fakeAPI) *importHarness {
	t.Helper()
	h := &importHarness{api: api, bus: eventbus.NewEventPublisher(quietLogger())}
	h.bus.Subscribe(func(e *ImportCompleted) { h.complete = append(h.complete, e) })
	h.bus.Subscribe(func(e *ImportFailed) { h.failed = append(h.failed, e) })
	h.engine = NewImportEngine(leadEntity, api, h.bus, quietLogger(), ImportConfig{
		CompanyScope:       "ACME",
		AcceptedExtensions: []string{".csv", ".xlsx"},
		SettleDelay:        time.Millisecond,
	})
	h.engine.Observe(func(st ImportState) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.states = append(h.states, st)
	})
	return h
}

func (h *importHarness) progress() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int, 0, len(h.states))
	for _, st := range h.states {
		out = append(out, st.Progress)
	}
	return out
}

func strPtr(s string) *string { return &s }

func TestImport_HeaderOnlyFileRejectedLocally(t *testing.T) {
	h := newImportHarness(t, &fakeAPI{})

	st, err := h.engine.BeginImport(context.Background(), importjob.SourceFile{Name: "leads.csv", Data: []byte("Full Name,Email\n")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, importjob.ErrEmptyFile))
	assert.Equal(t, importjob.StatusIdle, st.Status)
	assert.Empty(t, h.api.Calls())
}

func TestImport_UnsupportedFormatRejectedLocally(t *testing.T) {
	h := newImportHarness(t, &fakeAPI{})
	_, err := h.engine.BeginImport(context.Background(), importjob.SourceFile{Name: "leads.pdf", Data: []byte("x")})
	assert.True(t, errors.Is(err, importjob.ErrUnsupportedFormat))
	assert.Empty(t, h.api.Calls())
}

func TestImport_CleanFileCompletes(t *testing.T) {
	api := &fakeAPI{replies: []submitReply{{res: document.SubmitImportResult{Name: "DI-0001"}}}}
	h := newImportHarness(t, api)

	st, err := h.engine.BeginImport(context.Background(), leadsCSV)
	require.NoError(t, err)

	assert.Equal(t, importjob.StatusCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.True(t, st.Reload)
	assert.Equal(t, "DI-0001", st.Reference)
	assert.Empty(t, st.FileName)
	assert.Equal(t, []string{"submit", "start"}, api.Calls())
	assert.Equal(t, []string{"DI-0001"}, api.started)

	require.Len(t, api.submits, 1)
	sub := api.submits[0]
	assert.Equal(t, "CRM Lead", sub.Doctype)
	assert.Equal(t, "ACME", sub.CompanyScope)
	assert.Equal(t, leadsCSV.Data, sub.File.Data)
	assert.Empty(t, sub.ManualMappings)

	assert.Equal(t, []int{20, 60, 100, 100}, h.progress())
	require.Len(t, h.complete, 1)
	assert.Equal(t, "DI-0001", h.complete[0].Reference)
	assert.Empty(t, h.failed)
}

func TestImport_DataImportNameFallback(t *testing.T) {
	api := &fakeAPI{replies: []submitReply{{res: document.SubmitImportResult{DataImportName: "DI-0042"}}}}
	h := newImportHarness(t, api)

	st, err := h.engine.BeginImport(context.Background(), leadsCSV)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusCompleted, st.Status)
	assert.Equal(t, []string{"DI-0042"}, api.started)
}

func TestImport_MappingRoundTrip(t *testing.T) {
	api := &fakeAPI{replies: []submitReply{
		{res: document.SubmitImportResult{UnmappedColumns: []importjob.UnmappedColumn{{ColumnName: "Full Name", SuggestedField: strPtr("first_name")}}}},
		{res: document.SubmitImportResult{Name: "DI-0002"}},
	}}
	h := newImportHarness(t, api)
	ctx := context.Background()

	st, err := h.engine.BeginImport(ctx, leadsCSV)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusAwaitingMapping, st.Status)
	assert.Equal(t, 0, st.Progress)
	assert.Equal(t, "leads.csv", st.FileName)
	require.Len(t, st.UnmappedColumns, 1)
	assert.Equal(t, "first_name", *st.UnmappedColumns[0].SuggestedField)

	// an empty mapping never reaches the network
	_, err = h.engine.SubmitMapping(ctx, map[string]string{})
	assert.True(t, errors.Is(err, importjob.ErrMissingMappings))
	assert.Equal(t, []string{"submit"}, api.Calls())
	assert.Equal(t, importjob.StatusAwaitingMapping, h.engine.Snapshot().Status)

	st, err = h.engine.SubmitMapping(ctx, map[string]string{"Full Name": "first_name"})
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusCompleted, st.Status)
	assert.Equal(t, []string{"submit", "submit", "start"}, api.Calls())

	require.Len(t, api.submits, 2)
	assert.Equal(t, leadsCSV.Data, api.submits[1].File.Data)
	assert.Equal(t, map[string]string{"Full Name": "first_name"}, api.submits[1].ManualMappings)
	assert.Equal(t, []int{20, 0, 20, 60, 100, 100}, h.progress())
}

func TestImport_CustomColumnMappedOnResubmit(t *testing.T) {
	file := importjob.SourceFile{
		Name: "leads.csv",
		Data: []byte("First Name,Email,Custom Source\nAda,ada@example.com,web\n"),
	}
	api := &fakeAPI{replies: []submitReply{
		{res: document.SubmitImportResult{UnmappedColumns: []importjob.UnmappedColumn{{ColumnName: "Custom Source"}}}},
		{res: document.SubmitImportResult{Name: "DI-0100"}},
	}}
	h := newImportHarness(t, api)
	ctx := context.Background()

	st, err := h.engine.BeginImport(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusAwaitingMapping, st.Status)
	require.Len(t, st.UnmappedColumns, 1)
	assert.Equal(t, "Custom Source", st.UnmappedColumns[0].ColumnName)
	assert.Empty(t, api.submits[0].ManualMappings)

	st, err = h.engine.SubmitMapping(ctx, map[string]string{"Custom Source": "source"})
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)

	require.Len(t, api.submits, 2)
	assert.Equal(t, file.Data, api.submits[1].File.Data)
	assert.Equal(t, map[string]string{"Custom Source": "source"}, api.submits[1].ManualMappings)
	assert.Equal(t, []string{"DI-0100"}, api.started)
	require.Len(t, h.complete, 1)
	assert.Equal(t, "DI-0100", h.complete[0].Reference)
}

func TestImport_EmptyMappingNamesEveryOutstandingColumn(t *testing.T) {
	api := &fakeAPI{replies: []submitReply{
		{res: document.SubmitImportResult{UnmappedColumns: []importjob.UnmappedColumn{
			{ColumnName: "Region"},
			{ColumnName: "Custom Source"},
		}}},
	}}
	h := newImportHarness(t, api)
	ctx := context.Background()

	_, err := h.engine.BeginImport(ctx, leadsCSV)
	require.NoError(t, err)

	st, err := h.engine.SubmitMapping(ctx, map[string]string{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, importjob.ErrMissingMappings))
	assert.Contains(t, err.Error(), "Custom Source, Region")
	assert.Equal(t, importjob.StatusAwaitingMapping, st.Status)
	assert.Len(t, st.UnmappedColumns, 2)
	assert.Equal(t, []string{"submit"}, api.Calls())
	assert.Len(t, api.submits, 1)
}

func TestImport_SecondUnmappedRoundDiscardsMappings(t *testing.T) {
	api := &fakeAPI{replies: []submitReply{
		{res: document.SubmitImportResult{UnmappedColumns: []importjob.UnmappedColumn{{ColumnName: "A"}}}},
		{res: document.SubmitImportResult{UnmappedColumns: []importjob.UnmappedColumn{{ColumnName: "B"}}}},
		{res: document.SubmitImportResult{Name: "DI-3"}},
	}}
	h := newImportHarness(t, api)
	ctx := context.Background()

	_, err := h.engine.BeginImport(ctx, leadsCSV)
	require.NoError(t, err)
	st, err := h.engine.SubmitMapping(ctx, map[string]string{"A": "email"})
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusAwaitingMapping, st.Status)
	require.Len(t, st.UnmappedColumns, 1)
	assert.Equal(t, "B", st.UnmappedColumns[0].ColumnName)

	// the old key no longer counts
	_, err = h.engine.SubmitMapping(ctx, map[string]string{"A": "email"})
	assert.True(t, errors.Is(err, importjob.ErrMissingMappings))

	st, err = h.engine.SubmitMapping(ctx, map[string]string{"B": "first_name"})
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusCompleted, st.Status)
	assert.Equal(t, map[string]string{"B": "first_name"}, api.submits[2].ManualMappings)
}

func TestImport_MissingReferenceFails(t *testing.T) {
	api := &fakeAPI{replies: []submitReply{{res: document.SubmitImportResult{}}}}
	h := newImportHarness(t, api)

	st, err := h.engine.BeginImport(context.Background(), leadsCSV)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusFailed, st.Status)
	assert.Equal(t, "missing import reference", st.Message)
	assert.Equal(t, []string{"submit"}, api.Calls())
	require.Len(t, h.failed, 1)
	assert.Equal(t, "missing import reference", h.failed[0].Reason)
}

func TestImport_TransportFailures(t *testing.T) {
	api := &fakeAPI{replies: []submitReply{{err: errors.New("Company ACME does not exist")}}}
	h := newImportHarness(t, api)
	st, err := h.engine.BeginImport(context.Background(), leadsCSV)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusFailed, st.Status)
	assert.Equal(t, "Company ACME does not exist", st.Message)

	// a failed job is gone, so a new import may start; blank errors use the fallback
	api.replies = []submitReply{{err: errors.New(" ")}}
	st, err = h.engine.BeginImport(context.Background(), leadsCSV)
	require.NoError(t, err)
	assert.Equal(t, "import failed", st.Message)
}

func TestImport_StartImportFailure(t *testing.T) {
	api := &fakeAPI{startErr: errors.New("queue unavailable")}
	h := newImportHarness(t, api)

	st, err := h.engine.BeginImport(context.Background(), leadsCSV)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusFailed, st.Status)
	assert.Equal(t, "queue unavailable", st.Message)
	assert.Equal(t, 60, st.Progress)
	assert.False(t, st.Reload)
}

func TestImport_Cancel(t *testing.T) {
	api := &fakeAPI{replies: []submitReply{
		{res: document.SubmitImportResult{UnmappedColumns: []importjob.UnmappedColumn{{ColumnName: "A"}}}},
	}}
	h := newImportHarness(t, api)
	ctx := context.Background()

	_, err := h.engine.Cancel(ctx)
	assert.True(t, errors.Is(err, importjob.ErrNoActiveImport))

	_, err = h.engine.BeginImport(ctx, leadsCSV)
	require.NoError(t, err)
	st, err := h.engine.Cancel(ctx)
	require.NoError(t, err)
	assert.Equal(t, importjob.StatusCancelled, st.Status)
	assert.Empty(t, st.FileName)
	assert.Equal(t, []string{"submit"}, api.Calls())

	_, err = h.engine.SubmitMapping(ctx, map[string]string{"A": "email"})
	assert.True(t, errors.Is(err, importjob.ErrNoActiveImport))
}

func TestImport_SingleFlight(t *testing.T) {
	api := &fakeAPI{replies: []submitReply{
		{res: document.SubmitImportResult{UnmappedColumns: []importjob.UnmappedColumn{{ColumnName: "A"}}}},
	}}
	h := newImportHarness(t, api)
	ctx := context.Background()

	_, err := h.engine.BeginImport(ctx, leadsCSV)
	require.NoError(t, err)
	_, err = h.engine.BeginImport(ctx, leadsCSV)
	assert.True(t, errors.Is(err, importjob.ErrImportInProgress))
	assert.Len(t, api.Calls(), 1)
}

func TestImport_ConcurrentOperationRejected(t *testing.T) {
	api := &fakeAPI{entered: make(chan struct{}), unblock: make(chan struct{})}
	h := newImportHarness(t, api)

	done := make(chan ImportState)
	go func() {
		st, _ := h.engine.BeginImport(context.Background(), leadsCSV)
		done <- st
	}()
	<-api.entered

	assert.Equal(t, importjob.StatusUploading, h.engine.Snapshot().Status)
	_, err := h.engine.Cancel(context.Background())
	assert.True(t, errors.Is(err, ErrOperationInProgress))

	close(api.unblock)
	st := <-done
	assert.Equal(t, importjob.StatusCompleted, st.Status)
}
