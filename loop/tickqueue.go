package loop

// Task is a deferred callback together with the arguments it is invoked with.
type Task struct {
	Callback func(args ...any)
	Args     []any
}

func (t Task) run() {
	t.Callback(t.Args...)
}

// Each buffer holds at most queueSize-1 tasks: one slot stays free so that
// a full buffer can be told apart from an empty one.
const (
	queueSize = 2048
	queueMask = queueSize - 1
)

// fixedQueue is a circular buffer of tasks.
//
//	bottom: index of the oldest task (next to shift)
//	top:    index of the next free slot (next to push)
type fixedQueue struct {
	next   *fixedQueue
	bottom int
	top    int
	list   [queueSize]Task
}

func (q *fixedQueue) isEmpty() bool {
	return q.top == q.bottom
}

func (q *fixedQueue) isFull() bool {
	return (q.top+1)&queueMask == q.bottom
}

func (q *fixedQueue) push(t Task) {
	q.list[q.top] = t
	q.top = (q.top + 1) & queueMask
}

func (q *fixedQueue) shift() (Task, bool) {
	if q.isEmpty() {
		return Task{}, false
	}
	t := q.list[q.bottom]
	q.list[q.bottom] = Task{}
	q.bottom = (q.bottom + 1) & queueMask
	return t, true
}

// TickQueue is an unbounded FIFO of tasks built from a chain of fixed circular
// buffers. Pushes go to the head buffer, shifts come from the tail buffer; a
// new head is linked in when the current one fills up and the tail advances as
// soon as it drains and has a successor. Push never blocks or drops.
//
// The zero value is an empty queue. TickQueue is not safe for concurrent use.
type TickQueue struct {
	head *fixedQueue
	tail *fixedQueue
	n    int
}

// NewTickQueue returns an empty queue.
func NewTickQueue() *TickQueue {
	q := &TickQueue{}
	q.init()
	return q
}

func (q *TickQueue) init() {
	if q.head == nil {
		q.head = &fixedQueue{}
		q.tail = q.head
	}
}

// Push appends t.
func (q *TickQueue) Push(t Task) {
	q.init()
	if q.head.isFull() {
		q.head.next = &fixedQueue{}
		q.head = q.head.next
	}
	q.head.push(t)
	q.n++
}

// Shift removes and returns the oldest task. The boolean is false only when
// every buffer in the chain is empty.
func (q *TickQueue) Shift() (Task, bool) {
	if q.tail == nil {
		return Task{}, false
	}
	tail := q.tail
	t, ok := tail.shift()
	if !ok {
		return Task{}, false
	}
	q.n--
	if tail.isEmpty() && tail.next != nil {
		q.tail = tail.next
		tail.next = nil
	}
	return t, true
}

// Len returns the number of queued tasks.
func (q *TickQueue) Len() int {
	return q.n
}

// IsEmpty reports whether the queue holds no tasks.
func (q *TickQueue) IsEmpty() bool {
	return q.n == 0
}

// buffers returns the number of buffers currently linked, for tests.
func (q *TickQueue) buffers() int {
	n := 0
	for b := q.tail; b != nil; b = b.next {
		n++
	}
	return n
}
