package settings

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestProvider(t *testing.T) (*Provider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewProvider(client), mr
}

func TestGetWithoutStoredConfigReturnsDefault(t *testing.T) {
	p, _ := newTestProvider(t)

	cfg, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	def := Default()
	if cfg.NumFolders != def.NumFolders {
		t.Fatalf("num folders = %d, want default %d", cfg.NumFolders, def.NumFolders)
	}
	if cfg.Brightness != def.Brightness {
		t.Fatalf("brightness = %+v, want default %+v", cfg.Brightness, def.Brightness)
	}
	if cfg.EnableNoise {
		t.Fatal("noise enabled by default, it must be opt-in")
	}
}

func TestSetThenGetRoundTrip(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	want := Default()
	want.NumFolders = 9
	want.EnableSepia = false
	want.Rotate = Range{Min: -1, Max: 1}
	want.Filters = []string{"warm"}
	want.Metadata.RandomGPS = true

	if err := p.Set(ctx, want); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.NumFolders != 9 || got.EnableSepia || got.Rotate != want.Rotate {
		t.Fatalf("got %+v, want the stored snapshot", got)
	}
	if len(got.Filters) != 1 || got.Filters[0] != "warm" {
		t.Fatalf("filters = %v, want [warm]", got.Filters)
	}
	if !got.Metadata.RandomGPS {
		t.Fatal("metadata flags lost in the round trip")
	}
}

func TestGetRejectsCorruptStoredValue(t *testing.T) {
	p, mr := newTestProvider(t)

	mr.Set(configKey, "{not json")

	if _, err := p.Get(context.Background()); err == nil {
		t.Fatal("expected an error for a corrupt stored config")
	}
}
