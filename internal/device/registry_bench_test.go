package device

import (
	"context"
	"fmt"
	"testing"
)

// setupBenchRegistry returns a warmed registry holding n devices owned
// round-robin by user-0..user-3.
func setupBenchRegistry(b *testing.B, n int) *Registry {
	b.Helper()
	repo := NewMockRepository()
	ctx := context.Background()

	for i := 0; i < n; i++ {
		dev := &Device{
			ID:      fmt.Sprintf("dev-%04d", i),
			OwnerID: fmt.Sprintf("user-%d", i%4),
			Name:    fmt.Sprintf("Device %d", i),
			Pin:     i % 256,
			Type:    AllTypes()[i%len(AllTypes())],
			RefID:   fmt.Sprintf("DEV_%04d", i),
		}
		if err := repo.Create(ctx, dev); err != nil {
			b.Fatalf("creating device %d: %v", i, err)
		}
	}

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(ctx); err != nil {
		b.Fatalf("refreshing cache: %v", err)
	}
	return reg
}

func BenchmarkRegistryGetOwnedDevice(b *testing.B) {
	reg := setupBenchRegistry(b, 100)
	ctx := context.Background()

	for b.Loop() {
		if _, err := reg.GetOwnedDevice(ctx, "user-2", "dev-0050"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRegistryGetDevice_Parallel(b *testing.B) {
	reg := setupBenchRegistry(b, 100)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			reg.GetDevice(ctx, "dev-0050") //nolint:errcheck // benchmark
		}
	})
}

func BenchmarkRegistrySetDeviceStatus(b *testing.B) {
	reg := setupBenchRegistry(b, 100)
	ctx := context.Background()

	on := false
	for b.Loop() {
		on = !on
		if err := reg.SetDeviceStatus(ctx, "dev-0050", on); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRegistryGetDevicesByIDs(b *testing.B) {
	reg := setupBenchRegistry(b, 200)
	ctx := context.Background()

	// A history page's worth of distinct devices.
	ids := make([]string, 0, 50)
	for i := 0; i < 200; i += 4 {
		ids = append(ids, fmt.Sprintf("dev-%04d", i))
	}

	for b.Loop() {
		got, err := reg.GetDevicesByIDs(ctx, ids)
		if err != nil || len(got) != len(ids) {
			b.Fatalf("GetDevicesByIDs() = %d devices, %v", len(got), err)
		}
	}
}
