package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Limit is the number of notifications an inbox keeps; the oldest go first.
const Limit = 50

var (
	ErrNotFound      = errors.New("notification not found")
	ErrUnknownFilter = errors.New("unknown notification filter")
	ErrUnknownOrder  = errors.New("unknown notification order")
)

type Kind string

const (
	KindAssignment  Kind = "assignment"
	KindCourse      Kind = "course"
	KindQuiz        Kind = "quiz"
	KindAchievement Kind = "achievement"
	KindMessage     Kind = "message"
	KindReminder    Kind = "reminder"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Filter is "all", "unread", "high" or a Kind.
type Filter string

const (
	FilterAll    Filter = "all"
	FilterUnread Filter = "unread"
	FilterHigh   Filter = "high"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterUnread, FilterHigh:
		return f, nil
	}
	switch k := Kind(s); k {
	case KindAssignment, KindCourse, KindQuiz, KindAchievement, KindMessage, KindReminder:
		return Filter(k), nil
	}
	return "", ErrUnknownFilter
}

func (f Filter) keep(n Notification) bool {
	switch f {
	case FilterAll:
		return true
	case FilterUnread:
		return !n.Read
	case FilterHigh:
		return n.Priority == PriorityHigh
	}
	return n.Kind == Kind(f)
}

type Order string

const (
	OrderNewest   Order = "newest"
	OrderOldest   Order = "oldest"
	OrderPriority Order = "priority"
)

func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case "":
		return OrderNewest, nil
	case OrderNewest, OrderOldest, OrderPriority:
		return o, nil
	}
	return "", ErrUnknownOrder
}

type (
	Notification struct {
		ID        int64     `json:"id"`
		Kind      Kind      `json:"type"`
		Title     string    `json:"title"`
		Message   string    `json:"message"`
		Course    string    `json:"course,omitempty"`
		ActionURL string    `json:"actionUrl,omitempty"`
		Priority  Priority  `json:"priority"`
		Read      bool      `json:"read"`
		CreatedAt time.Time `json:"timestamp"`
	}

	List struct {
		Notifications []Notification `json:"notifications"`
		Unread        int            `json:"unread"`
	}

	// Inbox holds the notifications of one signed-in browser.
	Inbox struct {
		now func() time.Time

		mu     sync.Mutex
		nextID int64
		items  []Notification // oldest first
	}
)

func NewInbox(now func() time.Time) *Inbox {
	if now == nil {
		now = time.Now
	}
	return &Inbox{now: now}
}

// Add stores n as unread and returns it with its id and timestamp set.
func (in *Inbox) Add(n Notification) Notification {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.nextID++
	n.ID = in.nextID
	n.Read = false
	n.CreatedAt = in.now()
	if n.Priority == "" {
		n.Priority = PriorityMedium
	}

	in.items = append(in.items, n)
	if len(in.items) > Limit {
		in.items = append(in.items[:0:0], in.items[len(in.items)-Limit:]...)
	}
	return n
}

func (in *Inbox) List(f Filter, o Order) List {
	in.mu.Lock()
	defer in.mu.Unlock()

	list := List{Notifications: []Notification{}, Unread: in.unreadLocked()}
	for i := len(in.items) - 1; i >= 0; i-- { // newest first
		if f.keep(in.items[i]) {
			list.Notifications = append(list.Notifications, in.items[i])
		}
	}

	ns := list.Notifications
	switch o {
	case OrderOldest:
		for i, j := 0, len(ns)-1; i < j; i, j = i+1, j-1 {
			ns[i], ns[j] = ns[j], ns[i]
		}
	case OrderPriority:
		sort.SliceStable(ns, func(i, j int) bool { return ns[i].Priority.rank() > ns[j].Priority.rank() })
	}
	return list
}

func (in *Inbox) MarkRead(id int64) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.items {
		if in.items[i].ID == id {
			in.items[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

// MarkAllRead returns how many notifications were unread.
func (in *Inbox) MarkAllRead() int {
	in.mu.Lock()
	defer in.mu.Unlock()

	n := in.unreadLocked()
	for i := range in.items {
		in.items[i].Read = true
	}
	return n
}

func (in *Inbox) Delete(id int64) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	for i := range in.items {
		if in.items[i].ID == id {
			in.items = append(in.items[:i], in.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (in *Inbox) Unread() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.unreadLocked()
}

// Clear empties the inbox; ids keep growing.
func (in *Inbox) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.items = nil
}

func (in *Inbox) unreadLocked() int {
	var n int
	for _, item := range in.items {
		if !item.Read {
			n++
		}
	}
	return n
}
