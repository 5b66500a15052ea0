package servertest

import (
	"io"
	"testing"
	"time"
)

func TestReadPlanReplaysInOrder(t *testing.T) {
	var plan ReadPlan
	plan.Add("GET ").Add("/ HTTP/1.1\r\n\r\n")

	sock := NewSocket(&plan, nil)

	buf := make([]byte, 64)
	n, err := sock.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "GET / HTTP/1.1\r\n\r\n" {
		t.Fatalf("expected the two Add calls to merge into one step, got %q", buf[:n])
	}

	if !plan.Empty() {
		t.Fatalf("expected the plan to be consumed, next=%d", plan.next)
	}
	if _, err := sock.Read(buf); err != io.EOF {
		t.Fatalf("expected io.EOF once the plan is exhausted, got %v", err)
	}
}

func TestReadPlanDelayStartsNewStep(t *testing.T) {
	var plan ReadPlan
	plan.Add("a").Delay(5 * time.Millisecond).Add("b")

	sock := NewSocket(&plan, nil)
	buf := make([]byte, 1)

	n, err := sock.Read(buf)
	if err != nil || string(buf[:n]) != "a" {
		t.Fatalf("expected first step %q, got %q err=%v", "a", buf[:n], err)
	}

	start := time.Now()
	n, err = sock.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 0 {
		t.Fatalf("the delay step itself carries no data, got %d bytes", n)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("expected the scripted delay to be honored")
	}

	n, err = sock.Read(buf)
	if err != nil || string(buf[:n]) != "b" {
		t.Fatalf("expected the step after the delay %q, got %q err=%v", "b", buf[:n], err)
	}
}

func TestReadSplitsAcrossSmallBuffers(t *testing.T) {
	var plan ReadPlan
	plan.Add("hello")
	sock := NewSocket(&plan, nil)

	var got []byte
	buf := make([]byte, 2)
	for len(got) < len("hello") {
		n, err := sock.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "hello" {
		t.Fatalf("expected %q reassembled from short reads, got %q", "hello", got)
	}
}

func TestWritePlanChunksOutput(t *testing.T) {
	var plan WritePlan
	plan.Add(3)

	sock := NewSocket(nil, &plan)
	n, err := sock.Write([]byte("abcdef"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected the first write to accept only 3 bytes, got %d", n)
	}

	n2, err := sock.Write([]byte("def"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n2 != 3 {
		t.Fatalf("expected the remaining bytes to be accepted once the plan is exhausted, got %d", n2)
	}
	if string(sock.Written()) != "abcdef" {
		t.Fatalf("expected accumulated writes %q, got %q", "abcdef", sock.Written())
	}
}

func TestSocketCloseAbortsPendingDelay(t *testing.T) {
	var plan ReadPlan
	plan.Delay(time.Hour)

	sock := NewSocket(&plan, nil)
	done := make(chan error, 1)
	go func() {
		_, err := sock.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(5 * time.Millisecond)
	sock.Close()

	select {
	case err := <-done:
		if err != ErrAborted {
			t.Fatalf("expected ErrAborted, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Read did not unblock after Close")
	}
}

func TestTimerFiresOnlyForCurrentEpoch(t *testing.T) {
	var timer Timer
	fired := 0
	epoch1 := timer.Arm(func(int) { fired++ })
	epoch2 := timer.Arm(func(int) { fired++ })

	timer.Fire(epoch1)
	if fired != 0 {
		t.Fatalf("a stale epoch must not fire the callback, fired=%d", fired)
	}

	timer.Fire(epoch2)
	if fired != 1 {
		t.Fatalf("expected the current epoch to fire exactly once, fired=%d", fired)
	}
}

func TestTimerCancelPreventsFiring(t *testing.T) {
	var timer Timer
	fired := false
	epoch := timer.Arm(func(int) { fired = true })
	timer.Cancel()
	timer.Fire(epoch)
	if fired {
		t.Fatalf("a cancelled timer must never fire")
	}
}
