package analysis_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appanalysis "github.com/printsafeai/printsafe-api/internal/application/analysis"
	domain "github.com/printsafeai/printsafe-api/internal/domain/analysis"
	"github.com/printsafeai/printsafe-api/internal/domain/clients"
	"github.com/printsafeai/printsafe-api/internal/domain/employees"
)

// fakeDecoder maps bytes straight to a tiny tensor.
type fakeDecoder struct{}

func (fakeDecoder) Decode(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", domain.ErrDecode)
	}
	return []float32{float32(data[0]) / 255.0}, nil
}

// scriptedClassifier returns scores in order.
type scriptedClassifier struct {
	scores []float64
	calls  int
}

func (c *scriptedClassifier) Classify(ctx context.Context, input []float32) (float64, error) {
	if c.calls >= len(c.scores) {
		return 0, fmt.Errorf("%w: unexpected call", domain.ErrInference)
	}
	s := c.scores[c.calls]
	c.calls++
	return s, nil
}

// recordingStore captures batch saves.
type recordingStore struct {
	batches    int
	lastClient clients.Client
	lastEmp    int64
	lastBatch  []domain.BatchEntry
	failWith   error
}

func (s *recordingStore) Ping(ctx context.Context) error { return nil }

func (s *recordingStore) ListEmployees(ctx context.Context) ([]employees.Employee, error) {
	return []employees.Employee{{ID: 1, FirstName: "Maria", LastName: "Quispe"}}, nil
}

func (s *recordingStore) CreateClient(ctx context.Context, c *clients.Client) (int64, error) {
	return 77, nil
}

func (s *recordingStore) SaveAnalysisBatch(ctx context.Context, c *clients.Client, employeeID int64, entries []domain.BatchEntry) (int64, []domain.Record, error) {
	if s.failWith != nil {
		return 0, nil, s.failWith
	}
	s.batches++
	s.lastClient = *c
	s.lastEmp = employeeID
	s.lastBatch = entries

	records := make([]domain.Record, 0, len(entries))
	for i, e := range entries {
		records = append(records, domain.Record{
			ID:          int64(i + 1),
			EmployeeID:  employeeID,
			ClientID:    42,
			FileName:    e.FileName,
			Result:      e.Label,
			Probability: e.RawScore,
			Confidence:  e.RawScore,
			ImagePath:   fmt.Sprintf("imagenes_guardadas/%d_%s", i, e.FileName),
		})
	}
	return 42, records, nil
}

func newService(store domain.Store, scores ...float64) *appanalysis.Service {
	return &appanalysis.Service{
		Decoder:    fakeDecoder{},
		Classifier: &scriptedClassifier{scores: scores},
		Store:      store,
	}
}

func validSave(sessionID string) appanalysis.SaveCommand {
	return appanalysis.SaveCommand{
		SessionID:  sessionID,
		EmployeeID: 1,
		Client: clients.Client{
			FirstName:  "Ana",
			LastName:   "Torres",
			NationalID: "12345678",
			Phone:      "999888777",
		},
	}
}

func TestAnalyze_ReturnsVerdictsInUploadOrder(t *testing.T) {
	svc := newService(nil, 0.9, 0.1)

	results, err := svc.Analyze(context.Background(), []appanalysis.Upload{
		{FileName: "clear.png", Data: []byte{1}},
		{FileName: "logo.png", Data: []byte{2}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "clear.png", results[0].FileName)
	assert.Equal(t, domain.LabelNoInfractor, results[0].Label)
	assert.InDelta(t, 90.0, results[0].ConfidencePct, 1e-9)

	assert.Equal(t, "logo.png", results[1].FileName)
	assert.Equal(t, domain.LabelInfractor, results[1].Label)
	assert.InDelta(t, 90.0, results[1].ConfidencePct, 1e-9)
}

func TestAnalyze_NoUploads(t *testing.T) {
	svc := newService(nil)

	_, err := svc.Analyze(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAnalyze_DecodeErrorNamesFile(t *testing.T) {
	svc := newService(nil, 0.9)

	_, err := svc.Analyze(context.Background(), []appanalysis.Upload{
		{FileName: "broken.png", Data: nil},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.Contains(t, err.Error(), "broken.png")
}

func TestAnalyze_WorksWithoutStore(t *testing.T) {
	// degraded mode: no database, analysis still functions
	svc := newService(nil, 0.7)

	results, err := svc.Analyze(context.Background(), []appanalysis.Upload{
		{FileName: "a.png", Data: []byte{9}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LabelNoInfractor, results[0].Label)
}

func TestListEmployees_WithoutStore(t *testing.T) {
	svc := newService(nil)

	_, err := svc.ListEmployees(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestOpenSession_StagesResults(t *testing.T) {
	svc := newService(&recordingStore{}, 0.3)

	view, err := svc.OpenSession(context.Background(), []appanalysis.Upload{
		{FileName: "art.jpg", Data: []byte{5}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, view.ID)
	require.Len(t, view.Results, 1)

	again, err := svc.Session(view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.Results, again.Results)
}

func TestSession_UnknownID(t *testing.T) {
	svc := newService(nil)

	_, err := svc.Session("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSave_MissingPhoneMakesNoStoreCall(t *testing.T) {
	store := &recordingStore{}
	svc := newService(store, 0.2)

	view, err := svc.OpenSession(context.Background(), []appanalysis.Upload{
		{FileName: "a.png", Data: []byte{1}},
	})
	require.NoError(t, err)

	cmd := validSave(view.ID)
	cmd.Client.Phone = ""

	_, err = svc.Save(context.Background(), cmd)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "celular")
	assert.Zero(t, store.batches, "validation failure must not reach the store")

	// staged results survive so the operator can fix the form and retry
	again, err := svc.Session(view.ID)
	require.NoError(t, err)
	assert.Len(t, again.Results, 1)
}

func TestSave_MissingEmployee(t *testing.T) {
	store := &recordingStore{}
	svc := newService(store, 0.2)

	view, err := svc.OpenSession(context.Background(), []appanalysis.Upload{
		{FileName: "a.png", Data: []byte{1}},
	})
	require.NoError(t, err)

	cmd := validSave(view.ID)
	cmd.EmployeeID = 0

	_, err = svc.Save(context.Background(), cmd)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, store.batches)
}

func TestSave_TwoImagesOneClient(t *testing.T) {
	store := &recordingStore{}
	svc := newService(store, 0.9, 0.1)

	view, err := svc.OpenSession(context.Background(), []appanalysis.Upload{
		{FileName: "clear.png", Data: []byte{200}},
		{FileName: "logo.png", Data: []byte{3}},
	})
	require.NoError(t, err)

	res, err := svc.Save(context.Background(), validSave(view.ID))
	require.NoError(t, err)

	assert.Equal(t, 1, store.batches, "exactly one store call per save action")
	assert.Equal(t, int64(42), res.ClientID)
	require.Len(t, res.Records, 2)
	for _, rec := range res.Records {
		assert.Equal(t, int64(42), rec.ClientID)
		assert.Equal(t, int64(1), rec.EmployeeID)
	}

	// raw score is persisted in both columns, not the display percentage
	assert.Equal(t, 0.9, store.lastBatch[0].RawScore)
	assert.Equal(t, 0.1, store.lastBatch[1].RawScore)
}

// gatedStore parks SaveAnalysisBatch until released so a second save can be
// issued while the first one is still inside the store.
type gatedStore struct {
	recordingStore
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) SaveAnalysisBatch(ctx context.Context, c *clients.Client, employeeID int64, entries []domain.BatchEntry) (int64, []domain.Record, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.recordingStore.SaveAnalysisBatch(ctx, c, employeeID, entries)
}

func TestSave_ConcurrentSavesCommitOneBatch(t *testing.T) {
	store := &gatedStore{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	svc := newService(store, 0.6)

	view, err := svc.OpenSession(context.Background(), []appanalysis.Upload{
		{FileName: "a.png", Data: []byte{1}},
	})
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Save(context.Background(), validSave(view.ID))
		firstDone <- err
	}()
	<-store.entered // first save is now parked inside the store

	secondDone := make(chan error, 1)
	go func() {
		_, err := svc.Save(context.Background(), validSave(view.ID))
		secondDone <- err
	}()
	secondErr := <-secondDone // must fail without reaching the store

	close(store.release)
	require.NoError(t, <-firstDone)

	require.Error(t, secondErr)
	assert.ErrorIs(t, secondErr, domain.ErrNotFound)
	assert.Equal(t, 1, store.batches, "one save action per session must create exactly one client row")
}

func TestSave_SessionIsTerminalAfterSave(t *testing.T) {
	svc := newService(&recordingStore{}, 0.6)

	view, err := svc.OpenSession(context.Background(), []appanalysis.Upload{
		{FileName: "a.png", Data: []byte{1}},
	})
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), validSave(view.ID))
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), validSave(view.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSave_StoreFailureKeepsSession(t *testing.T) {
	store := &recordingStore{failWith: fmt.Errorf("%w: connection reset", domain.ErrStoreUnavailable)}
	svc := newService(store, 0.6)

	view, err := svc.OpenSession(context.Background(), []appanalysis.Upload{
		{FileName: "a.png", Data: []byte{1}},
	})
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), validSave(view.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	// the batch can be retried once the store is back
	_, err = svc.Session(view.ID)
	require.NoError(t, err)
}

func TestSave_WithoutStore(t *testing.T) {
	svc := newService(nil, 0.6)

	view, err := svc.OpenSession(context.Background(), []appanalysis.Upload{
		{FileName: "a.png", Data: []byte{1}},
	})
	require.NoError(t, err)

	_, err = svc.Save(context.Background(), validSave(view.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestStagedImage(t *testing.T) {
	svc := newService(&recordingStore{}, 0.2)

	view, err := svc.OpenSession(context.Background(), []appanalysis.Upload{
		{FileName: "logo.png", Data: []byte{1, 2, 3}},
	})
	require.NoError(t, err)

	staged, err := svc.StagedImage(view.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "logo.png", staged.FileName)
	assert.Equal(t, []byte{1, 2, 3}, staged.Data)
	assert.Equal(t, domain.LabelInfractor, staged.Verdict.Label)

	_, err = svc.StagedImage(view.ID, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
