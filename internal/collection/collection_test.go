package collection

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/inventory-manager/internal/model"
	"github.com/fairyhunter13/inventory-manager/internal/normalize"
)

// fakeService scripts the remote side of a collection.
type fakeService struct {
	mu        sync.Mutex
	remote    []*model.Document
	fetchErr  error
	createRes *model.Document
	createErr error
	updateRes *model.Document
	updateErr error
	deleteErr error
	fetches   int
	block     chan struct{}
	entered   chan struct{}
}

func (f *fakeService) FetchList(ctx context.Context) ([]*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]*model.Document, len(f.remote))
	copy(out, f.remote)
	return out, nil
}

func (f *fakeService) CreateOne(context.Context, any) (*model.Document, error) {
	return f.createRes, f.createErr
}

func (f *fakeService) UpdateOne(context.Context, string, any) (*model.Document, error) {
	return f.updateRes, f.updateErr
}

func (f *fakeService) DeleteOne(ctx context.Context, _ string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return true, nil
}

func (f *fakeService) EntityID(doc *model.Document) (string, bool) {
	return normalize.GetID(doc)
}

func (f *fakeService) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func doc(kv ...any) *model.Document { return model.DocumentOf(kv...) }

func TestCreateAppendsToEmptyList(t *testing.T) {
	svc := &fakeService{createRes: doc("_id", "x1", "name", "Widget")}
	c := New("products", svc)

	got, err := c.Create(context.Background(), doc("name", "Widget"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []*model.Document{doc("_id", "x1", "name", "Widget")}, c.List())
	assert.Equal(t, 0, svc.fetchCount())
	assert.Equal(t, StateIdle, c.State())
}

func TestCreatePrependsNewest(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("_id", "a")}, createRes: doc("_id", "b")}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))

	_, err := c.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []*model.Document{doc("_id", "b"), doc("_id", "a")}, c.List())
}

func TestCreateSuppressesDuplicates(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("_id", "x1", "name", "old")}, createRes: doc("_id", "x1", "name", "echo")}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))

	got, err := c.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, doc("_id", "x1", "name", "echo"), got)
	assert.Equal(t, []*model.Document{doc("_id", "x1", "name", "old")}, c.List())
}

func TestCreateWithoutIDIsPrepended(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("name", "a")}, createRes: doc("name", "a")}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))

	_, err := c.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, c.List(), 2)
}

func TestCreateUnknownShapeReloads(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("_id", "srv1"), doc("_id", "srv2")}}
	c := New("products", svc)

	got, err := c.Create(context.Background(), doc("name", "Widget"))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, svc.fetchCount())
	assert.Equal(t, []*model.Document{doc("_id", "srv1"), doc("_id", "srv2")}, c.List())
}

func TestUpdateMergesFields(t *testing.T) {
	svc := &fakeService{
		remote:    []*model.Document{doc("_id", "x1", "name", "Widget", "qty", model.Number(5))},
		updateRes: doc("_id", "x1", "qty", model.Number(9)),
	}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))

	got, err := c.Update(context.Background(), "x1", doc("qty", model.Number(9)))
	require.NoError(t, err)
	assert.Equal(t, doc("_id", "x1", "qty", model.Number(9)), got)
	assert.Equal(t, []*model.Document{doc("_id", "x1", "name", "Widget", "qty", model.Number(9))}, c.List())
}

func TestUpdateFallsBackToRequestedID(t *testing.T) {
	svc := &fakeService{
		remote:    []*model.Document{doc("_id", "x1", "qty", model.Number(5)), doc("_id", "x2", "qty", model.Number(1))},
		updateRes: doc("qty", model.Number(7)),
	}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))

	_, err := c.Update(context.Background(), "x2", nil)
	require.NoError(t, err)
	assert.Equal(t, []*model.Document{
		doc("_id", "x1", "qty", model.Number(5)),
		doc("_id", "x2", "qty", model.Number(7)),
	}, c.List())
}

func TestUpdateUnknownShapeReloads(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("_id", "x1")}}
	c := New("products", svc)

	got, err := c.Update(context.Background(), "x1", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, svc.fetchCount())
	assert.Len(t, c.List(), 1)
}

func TestRemoveDropsMatching(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("_id", "x1"), doc("_id", "x2")}}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))

	ok, err := c.Remove(context.Background(), "x1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []*model.Document{doc("_id", "x2")}, c.List())
}

func TestRemoveFailureKeepsErrorAndReloads(t *testing.T) {
	boom := errors.New("delete failed")
	svc := &fakeService{remote: []*model.Document{doc("_id", "x1"), doc("_id", "x2")}, deleteErr: boom}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))

	ok, err := c.Remove(context.Background(), "x1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, c.Err(), boom)
	assert.Equal(t, StateError, c.State())
	assert.Equal(t, 2, svc.fetchCount(), "initial load plus recovery reload")
	assert.Len(t, c.List(), 2)
}

func TestRemoveWithCancelledContextResyncs(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("_id", "x1"), doc("_id", "x2")}}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := c.Remove(ctx, "x1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, svc.fetchCount(), "recovery reload must reach the remote")
	assert.Equal(t, []*model.Document{doc("_id", "x1"), doc("_id", "x2")}, c.List())
	assert.Equal(t, StateError, c.State())
}

func TestMutationFailureWithFailingReload(t *testing.T) {
	createErr := errors.New("create failed")
	fetchErr := errors.New("fetch failed")
	svc := &fakeService{createErr: createErr, fetchErr: fetchErr}
	c := New("products", svc)

	_, err := c.Create(context.Background(), nil)
	assert.ErrorIs(t, err, createErr)
	assert.ErrorIs(t, err, fetchErr)
	assert.ErrorIs(t, c.Err(), createErr)
	assert.Empty(t, c.List())
}

func TestUpdateFailureReloads(t *testing.T) {
	boom := errors.New("patch failed")
	svc := &fakeService{remote: []*model.Document{doc("_id", "x1")}, updateErr: boom}
	c := New("products", svc)

	_, err := c.Update(context.Background(), "x1", nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, svc.fetchCount())
	assert.Equal(t, []*model.Document{doc("_id", "x1")}, c.List())
}

func TestLoadFailureEmptiesList(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("_id", "x1")}}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))
	require.Len(t, c.List(), 1)

	svc.fetchErr = errors.New("down")
	require.Error(t, c.Load(context.Background()))
	snap := c.Snapshot()
	assert.Empty(t, snap.List)
	assert.NotNil(t, snap.List)
	assert.Equal(t, StateError, snap.State)
	assert.False(t, snap.Loading)

	svc.fetchErr = nil
	require.NoError(t, c.Load(context.Background()))
	assert.NoError(t, c.Err(), "a later operation clears the error")
	assert.Equal(t, StateIdle, c.State())
}

func TestLoadIsIdempotent(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("_id", "b"), doc("_id", "a")}}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))
	first := c.List()
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, first, c.List())
}

func TestLoadingStateWhileInFlight(t *testing.T) {
	svc := &fakeService{block: make(chan struct{}), entered: make(chan struct{})}
	c := New("products", svc)
	assert.Equal(t, StateIdle, c.State())

	done := make(chan error)
	go func() { done <- c.Load(context.Background()) }()
	<-svc.entered
	assert.True(t, c.IsLoading())
	assert.Equal(t, StateLoading, c.State())
	close(svc.block)
	require.NoError(t, <-done)
	assert.False(t, c.IsLoading())
}

func TestListIsACopy(t *testing.T) {
	svc := &fakeService{remote: []*model.Document{doc("_id", "a")}}
	c := New("products", svc)
	require.NoError(t, c.Load(context.Background()))
	l := c.List()
	l[0] = nil
	got, ok := c.Find("a")
	assert.True(t, ok)
	assert.NotNil(t, got)
	_, ok = c.Find("zzz")
	assert.False(t, ok)
	assert.Equal(t, "products", c.Name())
}
