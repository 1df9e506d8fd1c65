package health

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestCollect(t *testing.T) {
	s := Collect(Options{Sessions: 3, Terminal: true, StartedAt: time.Now().Add(-90 * time.Second)})
	if s.Status != "ok" || s.Sessions != 3 || !s.Terminal {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.Goroutines <= 0 || s.Runtime.CPUs <= 0 || s.Runtime.Version == "" {
		t.Fatalf("runtime info missing: %+v", s)
	}
	if s.Uptime == "" {
		t.Fatalf("uptime missing")
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"status":"ok","sessions":3`) {
		t.Fatalf("json = %s", data)
	}
}

func TestCollectWithoutStart(t *testing.T) {
	if s := Collect(Options{}); s.Uptime != "" {
		t.Fatalf("uptime = %q, want empty", s.Uptime)
	}
}
