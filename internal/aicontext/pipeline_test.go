package aicontext

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) LoadProfile(ctx context.Context, userID string) (Profile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(Profile), args.Error(1)
}

func (m *mockStore) ListBloodSugar(ctx context.Context, userID string, window Window) ([]BloodSugarRecord, error) {
	args := m.Called(ctx, userID, window)
	records, _ := args.Get(0).([]BloodSugarRecord)
	return records, args.Error(1)
}

func (m *mockStore) ListVitals(ctx context.Context, userID string, window Window) ([]VitalRecord, error) {
	args := m.Called(ctx, userID, window)
	records, _ := args.Get(0).([]VitalRecord)
	return records, args.Error(1)
}

type recordingClient struct {
	prompts []string
	reply   any
	err     error
}

func (c *recordingClient) Send(_ context.Context, prompt string) (any, error) {
	c.prompts = append(c.prompts, prompt)
	return c.reply, c.err
}

var fixedNow = time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)

func newTestPipeline(store Store, client Client) *Pipeline {
	return NewPipeline(store, client, WithClock(func() time.Time { return fixedNow }))
}

func TestChatRejectsBlankMessageWithoutQueries(t *testing.T) {
	store := &mockStore{}
	client := &recordingClient{}

	_, err := newTestPipeline(store, client).Chat(context.Background(), "u-1", "   ")

	require.ErrorIs(t, err, ErrInvalidInput)
	store.AssertNotCalled(t, "LoadProfile", mock.Anything, mock.Anything)
	assert.Empty(t, client.prompts)
}

func TestChatProfileMissShortCircuits(t *testing.T) {
	store := &mockStore{}
	store.On("LoadProfile", mock.Anything, "u-1").Return(Profile{}, ErrProfileNotFound).Once()
	client := &recordingClient{}

	_, err := newTestPipeline(store, client).Chat(context.Background(), "u-1", "hello")

	require.ErrorIs(t, err, ErrProfileNotFound)
	store.AssertNumberOfCalls(t, "ListBloodSugar", 0)
	store.AssertNumberOfCalls(t, "ListVitals", 0)
	assert.Empty(t, client.prompts)
}

func TestChatAssemblesWindowAndRelaysReply(t *testing.T) {
	birthday := time.Date(2000, time.June, 15, 0, 0, 0, 0, time.UTC)
	window := TrailingWindow(fixedNow, 7)

	store := &mockStore{}
	store.On("LoadProfile", mock.Anything, "u-1").Return(Profile{
		UserID:   "u-1",
		HeightCm: floatPtr(180),
		WeightKg: floatPtr(75.2),
		Birthday: &birthday,
		Gender:   GenderMale,
	}, nil).Once()
	store.On("ListBloodSugar", mock.Anything, "u-1", window).Return([]BloodSugarRecord{
		{MeasuredAt: time.Date(2024, time.June, 14, 8, 0, 0, 0, time.UTC), Context: ContextBeforeMeal, Value: floatPtr(101)},
	}, nil).Once()
	store.On("ListVitals", mock.Anything, "u-1", window).Return([]VitalRecord{}, nil).Once()
	client := &recordingClient{reply: map[string]any{"answer": "ok"}}

	reply, err := newTestPipeline(store, client).Chat(context.Background(), "u-1", "Is this fine?")

	require.NoError(t, err)
	store.AssertExpectations(t)
	require.Len(t, client.prompts, 1)
	assert.Equal(t, reply.Prompt, client.prompts[0])
	assert.Equal(t, map[string]any{"answer": "ok"}, reply.Data)
	assert.Contains(t, reply.Prompt, "My height is 180 cm, weight is 75.2 kg, age is 24 years, gender is male.")
	assert.Contains(t, reply.Prompt, "2024-06-14 08:00:00 blood sugar: 101 mg/dL, context: before meal")
	assert.Contains(t, reply.Prompt, "Blood pressure: no records in the last 7 days.")
}

func TestChatStorageFailureAbortsBeforeUpstream(t *testing.T) {
	storageErr := &StorageError{Op: "list vitals", Err: errors.New("connection reset")}
	store := &mockStore{}
	store.On("LoadProfile", mock.Anything, "u-1").Return(Profile{UserID: "u-1"}, nil)
	store.On("ListBloodSugar", mock.Anything, "u-1", mock.Anything).Return([]BloodSugarRecord{}, nil)
	store.On("ListVitals", mock.Anything, "u-1", mock.Anything).Return(nil, storageErr)
	client := &recordingClient{}

	_, err := newTestPipeline(store, client).Chat(context.Background(), "u-1", "hello")

	var target *StorageError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "list vitals", target.Op)
	assert.Empty(t, client.prompts)
}

func TestChatPropagatesUpstreamError(t *testing.T) {
	store := &mockStore{}
	store.On("LoadProfile", mock.Anything, "u-1").Return(Profile{UserID: "u-1"}, nil)
	store.On("ListBloodSugar", mock.Anything, "u-1", mock.Anything).Return([]BloodSugarRecord{}, nil)
	store.On("ListVitals", mock.Anything, "u-1", mock.Anything).Return([]VitalRecord{}, nil)
	client := &recordingClient{err: ErrUpstreamTimeout}

	_, err := newTestPipeline(store, client).Chat(context.Background(), "u-1", "hello")

	require.ErrorIs(t, err, ErrUpstreamTimeout)
	assert.Len(t, client.prompts, 1)
}

func TestWithWindowDaysChangesHeader(t *testing.T) {
	store := &mockStore{}
	store.On("LoadProfile", mock.Anything, "u-1").Return(Profile{UserID: "u-1"}, nil)
	store.On("ListBloodSugar", mock.Anything, "u-1", TrailingWindow(fixedNow, 3)).Return([]BloodSugarRecord{}, nil)
	store.On("ListVitals", mock.Anything, "u-1", TrailingWindow(fixedNow, 3)).Return([]VitalRecord{}, nil)

	pipeline := NewPipeline(store, &recordingClient{},
		WithClock(func() time.Time { return fixedNow }),
		WithWindowDays(3),
	)
	prompt, err := pipeline.Assemble(context.Background(), "u-1", "hello")

	require.NoError(t, err)
	assert.Contains(t, prompt, "Blood sugar: no records in the last 3 days.")
	store.AssertExpectations(t)
}
