package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"

	"github.com/bigkaa/imageloader/internal/cache"
)

// mockSweeper — мок Sweeper с func-полем.
type mockSweeper struct {
	sweepFn func() cache.SweepResult
	calls   atomic.Int32
}

func (m *mockSweeper) SweepOrphans() cache.SweepResult {
	m.calls.Add(1)
	if m.sweepFn == nil {
		return cache.SweepResult{}
	}
	return m.sweepFn()
}

func TestGCRunOnce_Result(t *testing.T) {
	sweeper := &mockSweeper{sweepFn: func() cache.SweepResult {
		return cache.SweepResult{Orphans: 3, Temp: 1, Errors: 2}
	}}
	gc := NewGCService(sweeper, time.Hour, testLogger())

	result := gc.RunOnce()
	if result.OrphanCount != 3 {
		t.Errorf("OrphanCount: хотели 3, получили %d", result.OrphanCount)
	}
	if result.TempCount != 1 {
		t.Errorf("TempCount: хотели 1, получили %d", result.TempCount)
	}
	if result.Errors != 2 {
		t.Errorf("Errors: хотели 2, получили %d", result.Errors)
	}
}

func TestGCRunOnce_DiskCache(t *testing.T) {
	disk, err := cache.NewDiskCache(memfs.New(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания DiskCache: %v", err)
	}
	disk.Set(cache.DeriveKey("https://cdn.example/kept"), []byte("kept"))
	if _, err := disk.Store().Save([]byte("orphan")); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}

	gc := NewGCService(disk, time.Hour, testLogger())
	result := gc.RunOnce()

	if result.OrphanCount != 1 {
		t.Errorf("OrphanCount: хотели 1, получили %d", result.OrphanCount)
	}
	if _, ok := disk.Get(cache.DeriveKey("https://cdn.example/kept")); !ok {
		t.Error("запись индекса не должна удаляться GC")
	}

	// Повторный запуск ничего не находит.
	if result := gc.RunOnce(); result.OrphanCount != 0 {
		t.Errorf("повторный OrphanCount: хотели 0, получили %d", result.OrphanCount)
	}
}

func TestGCStartStop(t *testing.T) {
	sweeper := &mockSweeper{}
	gc := NewGCService(sweeper, 10*time.Millisecond, testLogger())

	gc.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	gc.Stop()

	if sweeper.calls.Load() < 2 {
		t.Fatalf("GC запущен %d раз, ожидалось не меньше 2", sweeper.calls.Load())
	}

	after := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if sweeper.calls.Load() != after {
		t.Error("GC продолжает работу после Stop")
	}

	// Повторный Stop безопасен.
	gc.Stop()
}
