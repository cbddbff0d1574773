package lstore

import (
	"github.com/ValentinKolb/dList/lib/db/util"
	"time"
)

// deadlineEvent registers (or, if remove is set, drops) the deadline of a waiter
type deadlineEvent struct {
	id       uint64
	deadline int64 // unix nanoseconds
	remove   bool
}

// reaper times out blocked clients.
//
// Deadlines are kept in a util.MapHeap that is only touched by the reaper
// goroutine. Waiters register and drop deadlines through a lock-free queue, so
// the store never waits for the reaper while holding its lock. When deadlines
// pass, the reaper calls expire with the affected ids. expire takes the store
// lock and ignores waiters that were satisfied in the meantime.
type reaper struct {
	events *util.LockFreeMPSC[deadlineEvent]
	expire func(ids []uint64)
	done   chan struct{}
}

func newReaper(expire func(ids []uint64)) *reaper {
	r := &reaper{
		events: util.NewLockFreeMPSC[deadlineEvent](),
		expire: expire,
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// add registers the deadline of a waiter
func (r *reaper) add(id uint64, deadline time.Time) {
	r.events.Push(&deadlineEvent{id: id, deadline: deadline.UnixNano()})
}

// remove drops the deadline of a waiter that finished early
func (r *reaper) remove(id uint64) {
	r.events.Push(&deadlineEvent{id: id, remove: true})
}

// stop terminates the reaper and waits for it to exit.
// Must not be called with the store lock held.
func (r *reaper) stop() {
	r.events.Close()
	<-r.done
}

func (r *reaper) run() {
	defer close(r.done)

	deadlines := util.NewMapHeap()
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-r.events.Recv():
			if !ok {
				return
			}
			if ev.remove {
				deadlines.RemoveByKey(ev.id)
			} else {
				deadlines.AddItem(ev.id, uint64(ev.deadline))
			}
		case <-timer.C:
		}

		if expired := deadlines.PopExpired(uint64(time.Now().UnixNano())); len(expired) > 0 {
			r.expire(expired)
		}

		// arm the timer for the next deadline
		next, ok := deadlines.Peek()
		if !ok {
			timer.Stop()
			continue
		}
		timer.Reset(time.Until(time.Unix(0, int64(next.Priority))))
	}
}
