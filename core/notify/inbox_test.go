package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tick struct{ now time.Time }

func (c *tick) Now() time.Time {
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestInbox() *Inbox {
	in := NewInbox((&tick{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}).Now)
	in.Add(Notification{Kind: KindCourse, Title: "Enrolled", Priority: PriorityMedium})
	in.Add(Notification{Kind: KindQuiz, Title: "Quiz Results", Priority: PriorityLow})
	in.Add(Notification{Kind: KindAchievement, Title: "Achievement Unlocked!", Priority: PriorityHigh})
	in.Add(Notification{Kind: KindCourse, Title: "Course published"})
	return in
}

func titles(l List) []string {
	out := make([]string, 0, len(l.Notifications))
	for _, n := range l.Notifications {
		out = append(out, n.Title)
	}
	return out
}

func TestInbox_List(t *testing.T) {
	in := newTestInbox()
	require.NoError(t, in.MarkRead(2))

	tests := []struct {
		name   string
		filter Filter
		order  Order
		want   []string
	}{
		{name: "all newest", filter: FilterAll, order: OrderNewest, want: []string{"Course published", "Achievement Unlocked!", "Quiz Results", "Enrolled"}},
		{name: "all oldest", filter: FilterAll, order: OrderOldest, want: []string{"Enrolled", "Quiz Results", "Achievement Unlocked!", "Course published"}},
		{name: "priority", filter: FilterAll, order: OrderPriority, want: []string{"Achievement Unlocked!", "Course published", "Enrolled", "Quiz Results"}},
		{name: "unread", filter: FilterUnread, order: OrderNewest, want: []string{"Course published", "Achievement Unlocked!", "Enrolled"}},
		{name: "high", filter: FilterHigh, order: OrderNewest, want: []string{"Achievement Unlocked!"}},
		{name: "by kind", filter: Filter(KindCourse), order: OrderOldest, want: []string{"Enrolled", "Course published"}},
		{name: "none", filter: Filter(KindMessage), order: OrderNewest, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := in.List(tt.filter, tt.order)
			assert.Equal(t, tt.want, titles(l))
			assert.Equal(t, 3, l.Unread)
		})
	}
}

func TestInbox_Add(t *testing.T) {
	in := newTestInbox()
	n := in.Add(Notification{Kind: KindReminder, Title: "Deadline", Read: true})
	assert.EqualValues(t, 5, n.ID)
	assert.False(t, n.Read)
	assert.Equal(t, PriorityMedium, n.Priority)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC), n.CreatedAt)

	for i := 0; i < Limit; i++ {
		in.Add(Notification{Kind: KindMessage, Title: fmt.Sprintf("msg %d", i)})
	}
	l := in.List(FilterAll, OrderOldest)
	require.Len(t, l.Notifications, Limit)
	assert.Equal(t, "msg 0", l.Notifications[0].Title)
}

func TestInbox_MarkAndDelete(t *testing.T) {
	in := newTestInbox()

	assert.Equal(t, ErrNotFound, in.MarkRead(42))
	assert.Equal(t, ErrNotFound, in.Delete(42))

	require.NoError(t, in.Delete(3))
	assert.Equal(t, 3, in.Unread())
	assert.Equal(t, 3, in.MarkAllRead())
	assert.Zero(t, in.Unread())
	assert.Zero(t, in.MarkAllRead())
	assert.Equal(t, []string{"Course published", "Quiz Results", "Enrolled"}, titles(in.List(FilterAll, OrderNewest)))

	in.Clear()
	assert.Empty(t, in.List(FilterAll, OrderNewest).Notifications)
	assert.EqualValues(t, 5, in.Add(Notification{Title: "after clear"}).ID)
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		in      string
		want    Filter
		wantErr error
	}{
		{in: "", want: FilterAll},
		{in: "unread", want: FilterUnread},
		{in: "high", want: FilterHigh},
		{in: "quiz", want: Filter(KindQuiz)},
		{in: "bogus", wantErr: ErrUnknownFilter},
	}
	for _, tt := range tests {
		got, err := ParseFilter(tt.in)
		if err != tt.wantErr || got != tt.want {
			t.Errorf("ParseFilter(%q) = %q, %v; want %q, %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}

	o, err := ParseOrder("")
	assert.NoError(t, err)
	assert.Equal(t, OrderNewest, o)
	_, err = ParseOrder("random")
	assert.Equal(t, ErrUnknownOrder, err)
}
