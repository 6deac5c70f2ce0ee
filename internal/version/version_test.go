package version

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteBanner(t *testing.T) {
	oldVersion := Version
	Version = "v1.2.3"
	defer func() { Version = oldVersion }()

	t.Run("非终端无颜色", func(t *testing.T) {
		var buf bytes.Buffer
		writeBanner(&buf, false)
		out := buf.String()
		if strings.Contains(out, "\033[") {
			t.Fatalf("unexpected ANSI escape in %q", out)
		}
		if !strings.Contains(out, "v1.2.3") || !strings.Contains(out, "Build Time:") {
			t.Fatalf("banner missing version info: %q", out)
		}
	})

	t.Run("终端带颜色", func(t *testing.T) {
		var buf bytes.Buffer
		writeBanner(&buf, true)
		if !strings.Contains(buf.String(), colorGreen+"v1.2.3"+colorReset) {
			t.Fatalf("version should be colored: %q", buf.String())
		}
	})
}

func TestString(t *testing.T) {
	if got := String(); !strings.HasPrefix(got, Version+" (") {
		t.Errorf("String() = %q", got)
	}
}
