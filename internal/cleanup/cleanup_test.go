package cleanup

import "testing"

// recordingCloser appends its label to a shared close log so tests can
// assert ordering and exactly-once semantics.
type recordingCloser struct {
	label string
	log   *[]string
}

func (r *recordingCloser) Close() error {
	*r.log = append(*r.log, r.label)
	return nil
}

func TestCloseReleasesChannelThenConnThenClient(t *testing.T) {
	var log []string
	var g Guard
	g.SetConn(&recordingCloser{"conn", &log})
	g.SetClient(&recordingCloser{"client", &log})
	g.SetChannel(&recordingCloser{"channel", &log})

	g.Close()

	want := []string{"channel", "conn", "client"}
	if len(log) != len(want) {
		t.Fatalf("close log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("close log = %v, want %v", log, want)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	var log []string
	var g Guard
	g.SetChannel(&recordingCloser{"channel", &log})

	g.Close()
	g.Close()

	if len(log) != 1 {
		t.Errorf("expected exactly one close, got %v", log)
	}
}

func TestCloseToleratesPartialAcquisition(t *testing.T) {
	var log []string
	var g Guard
	g.SetConn(&recordingCloser{"conn", &log})

	g.Close()

	if len(log) != 1 || log[0] != "conn" {
		t.Errorf("close log = %v, want [conn]", log)
	}
}

func TestCloseDedupesIdenticalHandles(t *testing.T) {
	var log []string
	shared := &recordingCloser{"shared", &log}
	var g Guard
	g.SetConn(shared)
	g.SetClient(shared)

	g.Close()

	if len(log) != 1 {
		t.Errorf("expected shared handle closed once, got %v", log)
	}
}
