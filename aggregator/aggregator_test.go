package aggregator

import (
	"chat-relay/domain"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAggregator_OnePublicationPerWindow(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPublisher := mocks.NewMockIPublisher(ctrl)
	agg := New(log, mockPublisher, 50*time.Millisecond)
	defer agg.Stop()

	done := make(chan string, 1)
	mockPublisher.EXPECT().
		Publish(gomock.Any(), "General", gomock.Any(), domain.KindDiscordEvent).
		DoAndReturn(func(ctx context.Context, key, text string, kind domain.Kind) error {
			done <- text
			return nil
		}).Times(1)

	// Given a burst of three events inside one window
	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{ID: "1", Name: "alice"}, Kind: domain.Joined})
	time.Sleep(5 * time.Millisecond)
	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{ID: "2", Name: "bob"}, Kind: domain.Joined})
	time.Sleep(5 * time.Millisecond)
	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{ID: "1", Name: "alice"}, Kind: domain.Left})

	// Then exactly one digest flushes with last status per subject
	select {
	case text := <-done:
		req.True(strings.Contains(text, "bob joined"))
		req.True(strings.Contains(text, "alice left"))
		req.False(strings.Contains(text, "alice joined"))
	case <-time.After(time.Second):
		req.Fail("Flush did not fire at time")
	}
	req.Equal(0, agg.Pending())
}

func TestAggregator_WindowIsFixedNotSliding(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPublisher := mocks.NewMockIPublisher(ctrl)
	agg := New(log, mockPublisher, 60*time.Millisecond)
	defer agg.Stop()

	done := make(chan struct{})
	mockPublisher.EXPECT().
		Publish(gomock.Any(), "General", gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, key, text string, kind domain.Kind) error {
			close(done)
			return nil
		}).Times(1)

	start := time.Now()
	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{Name: "alice"}, Kind: domain.Joined})
	// Keep feeding events; none of them may push the deadline back.
	for i := 0; i < 3; i++ {
		time.Sleep(15 * time.Millisecond)
		agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{Name: "alice"}, Kind: domain.Joined})
	}

	select {
	case <-done:
		req.Less(time.Since(start), 200*time.Millisecond)
	case <-time.After(time.Second):
		req.Fail("Flush did not fire at time")
	}
}

func TestAggregator_KeysFlushIndependently(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPublisher := mocks.NewMockIPublisher(ctrl)
	agg := New(log, mockPublisher, 40*time.Millisecond)
	defer agg.Stop()

	done := make(chan string, 2)
	mockPublisher.EXPECT().
		Publish(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, key, text string, kind domain.Kind) error {
			done <- key
			return nil
		}).Times(2)

	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{Name: "alice"}, Kind: domain.Joined})
	agg.Record(domain.Event{SourceKey: "Gaming", Subject: domain.User{Name: "bob"}, Kind: domain.Joined})
	req.Equal(2, agg.Pending())

	keys := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case key := <-done:
			keys[key] = true
		case <-time.After(time.Second):
			req.Fail("Flush did not fire at time")
		}
	}
	req.True(keys["General"])
	req.True(keys["Gaming"])
}

func TestAggregator_NewWindowAfterFlush(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPublisher := mocks.NewMockIPublisher(ctrl)
	agg := New(log, mockPublisher, 30*time.Millisecond)
	defer agg.Stop()

	done := make(chan struct{}, 2)
	mockPublisher.EXPECT().
		Publish(gomock.Any(), "General", gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, key, text string, kind domain.Kind) error {
			done <- struct{}{}
			return nil
		}).Times(2)

	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{Name: "alice"}, Kind: domain.Joined})
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("First flush did not fire at time")
	}

	// An event after the flush opens a fresh window with its own timer.
	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{Name: "alice"}, Kind: domain.Left})
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Second flush did not fire at time")
	}
}

func TestAggregator_DropsMalformedEvents(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No Publish expectation: a malformed event must never open a window.
	mockPublisher := mocks.NewMockIPublisher(ctrl)
	agg := New(log, mockPublisher, 20*time.Millisecond)
	defer agg.Stop()

	agg.Record(domain.Event{SourceKey: "", Subject: domain.User{Name: "alice"}, Kind: domain.Joined})
	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{}, Kind: domain.Joined})
	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{Name: "alice"}, Kind: "exploded"})

	req.Equal(0, agg.Pending())
	time.Sleep(50 * time.Millisecond)
}

func TestAggregator_PublishFailureStaysLocal(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPublisher := mocks.NewMockIPublisher(ctrl)
	agg := New(log, mockPublisher, 20*time.Millisecond)
	defer agg.Stop()

	done := make(chan struct{}, 2)
	gomock.InOrder(
		mockPublisher.EXPECT().
			Publish(gomock.Any(), "General", gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, key, text string, kind domain.Kind) error {
				done <- struct{}{}
				return context.DeadlineExceeded
			}),
		mockPublisher.EXPECT().
			Publish(gomock.Any(), "General", gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, key, text string, kind domain.Kind) error {
				done <- struct{}{}
				return nil
			}),
	)

	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{Name: "alice"}, Kind: domain.Joined})
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("First flush did not fire at time")
	}

	// The failed window is gone; the next one starts clean.
	agg.Record(domain.Event{SourceKey: "General", Subject: domain.User{Name: "alice"}, Kind: domain.Left})
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Second flush did not fire at time")
	}
}
