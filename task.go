package pls

import (
	"fmt"

	"github.com/behrlich/go-pls/internal/constants"
	"github.com/behrlich/go-pls/internal/frame"
)

// MaxArgs is the widest argument tile a task call frame carries.
// Larger argument tuples travel through the heap path.
const MaxArgs = constants.MaxArgs

// TaskFn is the uniform dispatch signature every bound task runs
// through: the worker executing the task, the task's timestamp, and
// its packed argument words. Use the Bind adapters to wrap typed
// functions rather than unpacking words by hand.
type TaskFn func(w *Worker, ts Timestamp, args []uint64)

// Task is an immutable bound call: a function, its timestamp, its
// spatial hint, and either a packed argument tile or a closure that
// owns its arguments. Constructed by enqueue, invoked exactly once by
// a worker, never mutated after construction.
type Task struct {
	ts     Timestamp
	uid    uint64
	hint   uint64
	flags  EnqFlags
	fn     TaskFn
	lambda func(w *Worker, ts Timestamp)
	nargs  uint8
	args   [constants.MaxArgs]uint64
}

// TS returns the task's timestamp.
func (t *Task) TS() Timestamp { return t.ts }

// UID returns the task's enqueue-order unique id.
func (t *Task) UID() uint64 { return t.uid }

// Hint returns the task's spatial hint key.
func (t *Task) Hint() uint64 { return t.hint }

// Flags returns the task's enqueue flags.
func (t *Task) Flags() EnqFlags { return t.flags }

// key is the scheduler sort key. Untimestamped tasks sort first.
func (t *Task) key() uint64 {
	if t.flags&EnqNoTimestamp != 0 {
		return 0
	}
	return uint64(t.ts)
}

func (t *Task) invoke(w *Worker) {
	if t.lambda != nil {
		t.lambda(w, t.ts)
		return
	}
	t.fn(w, t.ts, t.args[:t.nargs])
}

func mustFitWord[T any](adapter string) {
	if !frame.Fits[T]() {
		var zero T
		panic(fmt.Sprintf("pls: %s: argument type %T exceeds one word; use Bind1 with a tuple struct", adapter, zero))
	}
}

// Bind0 adapts a no-argument task function.
func Bind0(f func(w *Worker, ts Timestamp)) TaskFn {
	return func(w *Worker, ts Timestamp, _ []uint64) { f(w, ts) }
}

// Bind1 adapts a one-argument task function. Word-sized arguments are
// bit-cast into the first frame word; wider values are spread across
// the tile when they fit, and otherwise travel as a heap tuple behind
// a handle word. Pack the matching enqueue with Enqueue1.
func Bind1[A1 any](f func(w *Worker, ts Timestamp, a1 A1)) TaskFn {
	switch {
	case frame.Fits[A1]():
		return func(w *Worker, ts Timestamp, args []uint64) {
			f(w, ts, frame.Value[A1](args[0]))
		}
	case frame.Words[A1]() <= constants.MaxRegs:
		return func(w *Worker, ts Timestamp, args []uint64) {
			f(w, ts, frame.Gather[A1](args))
		}
	default:
		return func(w *Worker, ts Timestamp, args []uint64) {
			v := w.rt.handles.Take(args[0]).(*A1)
			f(w, ts, *v)
		}
	}
}

// Bind2 adapts a two-argument task function of word-sized arguments.
func Bind2[A1, A2 any](f func(w *Worker, ts Timestamp, a1 A1, a2 A2)) TaskFn {
	mustFitWord[A1]("Bind2")
	mustFitWord[A2]("Bind2")
	return func(w *Worker, ts Timestamp, args []uint64) {
		f(w, ts, frame.Value[A1](args[0]), frame.Value[A2](args[1]))
	}
}

// Bind3 adapts a three-argument task function of word-sized arguments.
func Bind3[A1, A2, A3 any](f func(w *Worker, ts Timestamp, a1 A1, a2 A2, a3 A3)) TaskFn {
	mustFitWord[A1]("Bind3")
	mustFitWord[A2]("Bind3")
	mustFitWord[A3]("Bind3")
	return func(w *Worker, ts Timestamp, args []uint64) {
		f(w, ts, frame.Value[A1](args[0]), frame.Value[A2](args[1]), frame.Value[A3](args[2]))
	}
}

// Bind4 adapts a four-argument task function of word-sized arguments.
func Bind4[A1, A2, A3, A4 any](f func(w *Worker, ts Timestamp, a1 A1, a2 A2, a3 A3, a4 A4)) TaskFn {
	mustFitWord[A1]("Bind4")
	mustFitWord[A2]("Bind4")
	mustFitWord[A3]("Bind4")
	mustFitWord[A4]("Bind4")
	return func(w *Worker, ts Timestamp, args []uint64) {
		f(w, ts, frame.Value[A1](args[0]), frame.Value[A2](args[1]),
			frame.Value[A3](args[2]), frame.Value[A4](args[3]))
	}
}

// Bind5 adapts a five-argument task function of word-sized arguments.
func Bind5[A1, A2, A3, A4, A5 any](f func(w *Worker, ts Timestamp, a1 A1, a2 A2, a3 A3, a4 A4, a5 A5)) TaskFn {
	mustFitWord[A1]("Bind5")
	mustFitWord[A2]("Bind5")
	mustFitWord[A3]("Bind5")
	mustFitWord[A4]("Bind5")
	mustFitWord[A5]("Bind5")
	return func(w *Worker, ts Timestamp, args []uint64) {
		f(w, ts, frame.Value[A1](args[0]), frame.Value[A2](args[1]),
			frame.Value[A3](args[2]), frame.Value[A4](args[3]), frame.Value[A5](args[4]))
	}
}

// Word bit-casts a word-sized value into an argument word for a raw
// Enqueue call.
func Word[T any](v T) uint64 { return frame.Word(v) }

// Arg recovers a word-sized value from an argument word inside a task.
func Arg[T any](w uint64) T { return frame.Value[T](w) }

// Enqueue1 packs a single typed argument the way Bind1's adapter for
// the same type unpacks it, and enqueues the task.
func Enqueue1[A1 any](q Enqueuer, fn TaskFn, ts Timestamp, h Hint, a1 A1) {
	rt, _ := q.base()
	var args [constants.MaxArgs]uint64
	var n uint8
	switch {
	case frame.Fits[A1]():
		args[0] = frame.Word(a1)
		n = 1
	case frame.Words[A1]() <= constants.MaxRegs:
		n = uint8(frame.Spread(a1, args[:]))
	default:
		args[0] = rt.handles.Put(&a1)
		n = 1
	}
	q.Enqueue(fn, ts, h, args[:n]...)
}

// Enqueue2 packs two word-sized arguments for a Bind2 adapter.
func Enqueue2[A1, A2 any](q Enqueuer, fn TaskFn, ts Timestamp, h Hint, a1 A1, a2 A2) {
	q.Enqueue(fn, ts, h, frame.Word(a1), frame.Word(a2))
}

// Enqueue3 packs three word-sized arguments for a Bind3 adapter.
func Enqueue3[A1, A2, A3 any](q Enqueuer, fn TaskFn, ts Timestamp, h Hint, a1 A1, a2 A2, a3 A3) {
	q.Enqueue(fn, ts, h, frame.Word(a1), frame.Word(a2), frame.Word(a3))
}

// Enqueue4 packs four word-sized arguments for a Bind4 adapter.
func Enqueue4[A1, A2, A3, A4 any](q Enqueuer, fn TaskFn, ts Timestamp, h Hint, a1 A1, a2 A2, a3 A3, a4 A4) {
	q.Enqueue(fn, ts, h, frame.Word(a1), frame.Word(a2), frame.Word(a3), frame.Word(a4))
}

// Enqueue5 packs five word-sized arguments for a Bind5 adapter.
func Enqueue5[A1, A2, A3, A4, A5 any](q Enqueuer, fn TaskFn, ts Timestamp, h Hint, a1 A1, a2 A2, a3 A3, a4 A4, a5 A5) {
	q.Enqueue(fn, ts, h, frame.Word(a1), frame.Word(a2), frame.Word(a3), frame.Word(a4), frame.Word(a5))
}
