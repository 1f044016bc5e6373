package imagesource

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestLatest(t *testing.T) {
	l := NewLatest[int]()
	test.That(t, l.Put(1), test.ShouldBeFalse)
	test.That(t, l.Put(2), test.ShouldBeTrue)
	test.That(t, l.Put(3), test.ShouldBeTrue)
	test.That(t, l.Dropped(), test.ShouldEqual, 2)

	v, err := l.Get(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Get(ctx)
	test.That(t, err, test.ShouldBeError, context.DeadlineExceeded)

	test.That(t, l.Put(4), test.ShouldBeFalse)
	test.That(t, <-l.C(), test.ShouldEqual, 4)
}

func TestLatestConcurrentPut(t *testing.T) {
	l := NewLatest[int]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Put(j)
			}
		}()
	}
	received := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-l.C():
			received++
			continue
		case <-done:
		}
		break
	}
	// whatever was not received is still buffered or was dropped
	buffered := len(l.C())
	test.That(t, int64(received+buffered)+l.Dropped(), test.ShouldEqual, 800)
}
