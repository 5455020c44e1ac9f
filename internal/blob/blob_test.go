package blob

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	for _, d := range []Driver{"", DriverNone} {
		store, err := Open(ctx, Options{Driver: d})
		if err != nil || store != nil {
			t.Fatalf("driver %q: expected nil store, got %v (%v)", d, store, err)
		}
	}
	mem, err := Open(ctx, Options{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory: %v %v", mem, err)
	}
	fs, err := Open(ctx, Options{Driver: DriverFilesystem, FSRoot: filepath.Join(t.TempDir(), "archive")})
	if err != nil || fs.Driver() != DriverFilesystem {
		t.Fatalf("fs: %v %v", fs, err)
	}
	if _, err := Open(ctx, Options{Driver: DriverS3}); err == nil {
		t.Fatalf("expected s3 without bucket to fail")
	}
	if _, err := Open(ctx, Options{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
