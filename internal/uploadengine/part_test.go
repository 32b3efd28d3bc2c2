package uploadengine

import "testing"

func TestPartStoreInitEnumeratesContiguousParts(t *testing.T) {
	s := NewPartStore()
	s.Init(25, 10)

	if got := s.PartCount(); got != 3 {
		t.Fatalf("PartCount() = %d, want 3", got)
	}

	var parts []*Part
	for {
		p, ok := s.NextPart()
		if !ok {
			break
		}
		parts = append(parts, p)
	}

	want := []struct{ start, end int64 }{{0, 10}, {10, 20}, {20, 25}}
	if len(parts) != len(want) {
		t.Fatalf("got %d parts, want %d", len(parts), len(want))
	}
	for i, p := range parts {
		if p.Start != want[i].start || p.End != want[i].end {
			t.Errorf("part %d = [%d,%d), want [%d,%d)", i, p.Start, p.End, want[i].start, want[i].end)
		}
		if p.Index != i+1 {
			t.Errorf("part %d has Index %d, want %d", i, p.Index, i+1)
		}
	}
}

func TestPartStoreInitIsIdempotent(t *testing.T) {
	s := NewPartStore()
	s.Init(100, 10)
	s.Init(999, 1) // second call must be a no-op
	if got := s.FileSize(); got != 100 {
		t.Fatalf("FileSize() = %d, want 100 (Init should be idempotent)", got)
	}
}

func TestPartStoreZeroByteFile(t *testing.T) {
	s := NewPartStore()
	s.Init(0, 10)
	if got := s.PartCount(); got != 0 {
		t.Fatalf("PartCount() = %d, want 0", got)
	}
	if !s.Quiescent() {
		t.Fatal("empty store should be quiescent")
	}
	if !s.Complete() {
		t.Fatal("empty store should be complete")
	}
}

func TestPartStorePassPartAdvancesDoneBytes(t *testing.T) {
	s := NewPartStore()
	s.Init(20, 10)

	p1, _ := s.NextPart()
	p2, _ := s.NextPart()

	s.PassPart(p1)
	if got := s.DoneBytes(); got != 10 {
		t.Fatalf("DoneBytes() = %d, want 10", got)
	}
	if s.Complete() {
		t.Fatal("store should not be complete with one part outstanding")
	}

	s.PassPart(p2)
	if got := s.DoneBytes(); got != 20 {
		t.Fatalf("DoneBytes() = %d, want 20", got)
	}
	if !s.Complete() {
		t.Fatal("store should be complete once all parts pass")
	}
}

func TestPartStoreFailPartMovesToFailedBucket(t *testing.T) {
	s := NewPartStore()
	s.Init(10, 10)
	p, _ := s.NextPart()
	s.FailPart(p)

	snap := s.Snapshot()
	if snap.Failed != 1 || snap.OnDuty != 0 || snap.ToSend != 0 {
		t.Fatalf("snapshot = %+v, want 1 failed, 0 on duty, 0 to send", snap)
	}
	if !s.Quiescent() {
		t.Fatal("store should be quiescent once the only on-duty part fails")
	}
}

func TestPartStoreLateSettlementOnRetiredPartIsNoOp(t *testing.T) {
	s := NewPartStore()
	s.Init(10, 10)
	p, _ := s.NextPart()
	s.Pause() // p moves back to toSend, leaves onDuty

	s.PassPart(p) // late completion after pause: must not affect doneBytes
	if got := s.DoneBytes(); got != 0 {
		t.Fatalf("DoneBytes() = %d after late PassPart, want 0", got)
	}

	s.FailPart(p) // likewise must not move it to failed
	if snap := s.Snapshot(); snap.Failed != 0 {
		t.Fatalf("Failed = %d after late FailPart, want 0", snap.Failed)
	}
}

func TestPartStorePauseRequeuesOnDutyParts(t *testing.T) {
	s := NewPartStore()
	s.Init(30, 10)
	s.NextPart()
	s.NextPart()

	s.Pause()
	snap := s.Snapshot()
	if snap.OnDuty != 0 {
		t.Fatalf("OnDuty = %d after Pause, want 0", snap.OnDuty)
	}
	if snap.ToSend != 3 {
		t.Fatalf("ToSend = %d after Pause, want 3", snap.ToSend)
	}
	if !s.Quiescent() {
		t.Fatal("store should be quiescent after Pause")
	}
}

func TestPartStoreRetryRequeuesFailedParts(t *testing.T) {
	s := NewPartStore()
	s.Init(10, 10)
	p, _ := s.NextPart()
	s.FailPart(p)

	s.Retry()
	snap := s.Snapshot()
	if snap.Failed != 0 || snap.ToSend != 1 {
		t.Fatalf("snapshot = %+v, want 0 failed, 1 to send", snap)
	}
}
