package specs

import "testing"

func TestTake(t *testing.T) {
	s := Take()

	if s.Timestamp == 0 {
		t.Fatalf("snapshot should carry a timestamp")
	}
	if s.NumCPU < 1 {
		t.Fatalf("NumCPU %d, expected at least 1", s.NumCPU)
	}
	if s.MemTotalBytes == 0 {
		t.Fatalf("total memory should be readable")
	}
	if s.MemUsedBytes > s.MemTotalBytes {
		t.Fatalf("used memory exceeds total")
	}
}
