package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/scorecard/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))

		Convey("When a fingerprint is claimed for the first time", func() {
			owner, existed := d.Claim(ctx, "fp-1", "job-1")

			Convey("Then the new job owns it", func() {
				So(existed, ShouldBeFalse)
				So(owner, ShouldEqual, "job-1")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a second claim returns the first job", func() {
				owner, existed := d.Claim(ctx, "fp-1", "job-2")
				So(existed, ShouldBeTrue)
				So(owner, ShouldEqual, "job-1")
			})

			Convey("And after release the fingerprint can be claimed again", func() {
				d.Release(ctx, "fp-1")
				owner, existed := d.Claim(ctx, "fp-1", "job-3")
				So(existed, ShouldBeFalse)
				So(owner, ShouldEqual, "job-3")
			})
		})

		Convey("When more fingerprints than the capacity are claimed", func() {
			d.Claim(ctx, "a", "1")
			d.Claim(ctx, "b", "2")
			d.Claim(ctx, "c", "3")

			Convey("Then the oldest is evicted", func() {
				So(d.Size(), ShouldEqual, 2)
				_, existed := d.Claim(ctx, "a", "4")
				So(existed, ShouldBeFalse)
			})
		})

		Convey("When many goroutines claim the same fingerprint", func() {
			shared := dedupe.NewInMemoryDeduper()
			var wg sync.WaitGroup
			var mu sync.Mutex
			winners := 0
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, existed := shared.Claim(ctx, "same", fmt.Sprintf("job-%d", i)); !existed {
						mu.Lock()
						winners++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(winners, ShouldEqual, 1)
			})
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given submissions", t, func() {
		a := dedupe.Fingerprint("tl-1", []byte("csv"))
		So(a, ShouldEqual, dedupe.Fingerprint("tl-1", []byte("csv")))
		So(a, ShouldNotEqual, dedupe.Fingerprint("tl-2", []byte("csv")))
		So(a, ShouldNotEqual, dedupe.Fingerprint("tl-1", []byte("csv ")))
		So(len(a), ShouldEqual, 64)
	})
}
