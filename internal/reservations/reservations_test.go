package reservations_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/sabores-reservas/internal/clock"
	"github.com/example/sabores-reservas/internal/reservations"
	"github.com/example/sabores-reservas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oct4 = time.Date(2025, time.October, 4, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T, tables ...reservations.Table) (*reservations.Service, *testutil.Reservations) {
	t.Helper()
	store := testutil.NewReservations()
	for _, tb := range tables {
		store.AddTable(tb)
	}
	now := time.Date(2025, time.October, 3, 10, 0, 0, 0, time.UTC)
	return reservations.NewService(store, reservations.WithClock(clock.NewFixed(now)), reservations.WithLogger(testutil.Logger())), store
}

func req(user, table int64, hhmm string, party int) reservations.Request {
	return reservations.Request{UserID: user, TableID: table, Date: oct4, Time: hhmm, PartySize: party}
}

func TestValidateScenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, reservations.Table{ID: 3, Capacity: 4})

	d, err := svc.Validate(ctx, req(7, 3, "20:00", 2))
	require.NoError(t, err)
	require.True(t, d.Accepted())

	_, err = svc.Create(ctx, reservations.Booking{Request: req(7, 3, "20:00", 2)})
	require.NoError(t, err)

	d, err = svc.Validate(ctx, req(8, 3, "20:00", 2))
	require.NoError(t, err)
	assert.Equal(t, reservations.ReasonTableUnavailable, d.Reason)
}

func TestValidateDuplicateUserSlot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, reservations.Table{ID: 3, Capacity: 4}, reservations.Table{ID: 4, Capacity: 4})

	_, err := svc.Book(ctx, reservations.Booking{Request: req(7, 3, "20:00", 2)})
	require.NoError(t, err)

	d, err := svc.Validate(ctx, req(7, 4, "20:00", 2))
	require.NoError(t, err)
	assert.Equal(t, reservations.ReasonDuplicateUserSlot, d.Reason)

	// Same user, other slot is fine.
	d, err = svc.Validate(ctx, req(7, 4, "14:00", 2))
	require.NoError(t, err)
	assert.True(t, d.Accepted())
}

func TestValidateRuleOrder(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		seed []reservations.Reservation
		req  reservations.Request
		want reservations.Reason
	}{
		{
			name: "missing table",
			req:  req(1, 99, "19:00", 2),
			want: reservations.ReasonTableNotFound,
		},
		{
			name: "capacity beats availability",
			seed: []reservations.Reservation{{UserID: 2, TableID: 1, Date: oct4, Time: "19:00", PartySize: 2}},
			req:  req(1, 1, "19:00", 5),
			want: reservations.ReasonInsufficientCapacity,
		},
		{
			name: "zero party",
			req:  req(1, 1, "19:00", 0),
			want: reservations.ReasonInvalidPartySize,
		},
		{
			name: "table conflict beats duplicate user",
			seed: []reservations.Reservation{{UserID: 1, TableID: 1, Date: oct4, Time: "19:00", PartySize: 2}},
			req:  req(1, 1, "19:00", 2),
			want: reservations.ReasonTableUnavailable,
		},
		{
			name: "disabled table",
			req:  req(1, 2, "19:00", 2),
			want: reservations.ReasonTableUnavailable,
		},
		{
			name: "cancelled reservation frees the slot",
			seed: []reservations.Reservation{{UserID: 2, TableID: 1, Date: oct4, Time: "19:00", PartySize: 2, Status: reservations.StatusCancelled}},
			req:  req(1, 1, "19:00", 4),
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newService(t,
				reservations.Table{ID: 1, Capacity: 4},
				reservations.Table{ID: 2, Capacity: 4, Status: "maintenance"},
			)
			for _, r := range tc.seed {
				store.Seed(r)
			}
			d, err := svc.Validate(ctx, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, d.Reason)
		})
	}
}

func TestInsufficientCapacityRegardlessOfAvailability(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, reservations.Table{ID: 1, Capacity: 2})
	for party := 3; party <= 8; party++ {
		d, err := svc.Validate(ctx, req(1, 1, "12:00", party))
		require.NoError(t, err)
		assert.Equal(t, reservations.ReasonInsufficientCapacity, d.Reason, "party %d", party)
	}
}

func TestTablesAvailable(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t,
		reservations.Table{ID: 3, Capacity: 4},
		reservations.Table{ID: 1, Capacity: 2},
		reservations.Table{ID: 2, Capacity: 6, Status: "maintenance"},
		reservations.Table{ID: 4, Capacity: 4},
	)
	store.Seed(reservations.Reservation{UserID: 9, TableID: 3, Date: oct4, Time: "19:00", PartySize: 2})
	store.Seed(reservations.Reservation{UserID: 9, TableID: 4, Date: oct4, Time: "19:00", PartySize: 2, Status: reservations.StatusCancelled})
	store.Seed(reservations.Reservation{UserID: 9, TableID: 1, Date: oct4.AddDate(0, 0, 1), Time: "19:00", PartySize: 2})

	got, err := svc.TablesAvailable(ctx, oct4, "19:00")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids(got))

	got, err = svc.TablesAvailable(ctx, oct4, "12:00")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4}, ids(got))

	// Unknown times are not rejected here.
	got, err = svc.TablesAvailable(ctx, oct4, "03:17")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestTablesAvailableEmpty(t *testing.T) {
	svc, store := newService(t, reservations.Table{ID: 1, Capacity: 4})
	store.Seed(reservations.Reservation{UserID: 1, TableID: 1, Date: oct4, Time: "19:00", PartySize: 1})

	got, err := svc.TablesAvailable(context.Background(), oct4, "19:00")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateMapsUniqueViolations(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, reservations.Table{ID: 1, Capacity: 4}, reservations.Table{ID: 2, Capacity: 4})
	_, err := svc.Create(ctx, reservations.Booking{Request: req(1, 1, "19:00", 2)})
	require.NoError(t, err)

	// A racing writer passed the pre-check; the store still refuses it.
	store.SkipChecks = true

	_, err = svc.Book(ctx, reservations.Booking{Request: req(2, 1, "19:00", 2)})
	reason, ok := reservations.Rejection(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, reservations.ReasonTableUnavailable, reason)

	_, err = svc.Book(ctx, reservations.Booking{Request: req(1, 2, "19:00", 2)})
	reason, ok = reservations.Rejection(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, reservations.ReasonDuplicateUserSlot, reason)

	assert.Len(t, store.All(), 1)
}

func TestCreateRollsBackOnOrderLineFailure(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, reservations.Table{ID: 1, Capacity: 4})
	store.FailLines = errors.New("disk full")

	_, err := svc.Create(ctx, reservations.Booking{
		Request: req(1, 1, "19:00", 2),
		Lines:   []reservations.OrderLine{{Kind: reservations.KindDish, ItemID: 1, Quantity: 2}},
	})
	require.Error(t, err)
	_, rejected := reservations.Rejection(err)
	assert.False(t, rejected)
	assert.Empty(t, store.All())
}

func TestCreateWritesOrderLines(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, reservations.Table{ID: 1, Capacity: 4})
	store.NameItem(reservations.KindDish, 5, "Paella", 1800)
	store.NameItem(reservations.KindBeverage, 2, "Vino tinto", 600)

	r, err := svc.Create(ctx, reservations.Booking{
		Request: req(1, 1, "19:00", 2),
		Lines: []reservations.OrderLine{
			{Kind: reservations.KindDish, ItemID: 5, Quantity: 2},
			{Kind: reservations.KindBeverage, ItemID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, reservations.StatusConfirmed, r.Status)
	assert.Equal(t, oct4, r.Date)

	lines, err := svc.OrderSummary(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Paella", lines[0].Name)
	assert.Equal(t, int64(3600), lines[0].TotalCents())
}

func TestCreateNormalizesDate(t *testing.T) {
	svc, _ := newService(t, reservations.Table{ID: 1, Capacity: 4})
	madrid := time.FixedZone("CEST", 2*3600)

	r, err := svc.Create(context.Background(), reservations.Booking{Request: reservations.Request{
		UserID: 1, TableID: 1, Date: time.Date(2025, 10, 4, 23, 30, 0, 0, madrid), Time: "21:00", PartySize: 2,
	}})
	require.NoError(t, err)
	assert.Equal(t, oct4, r.Date)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, reservations.Table{ID: 1, Capacity: 4})
	r, err := svc.Book(ctx, reservations.Booking{Request: req(1, 1, "19:00", 2)})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, r.ID, reservations.Actor{UserID: 2})
	assert.ErrorIs(t, err, reservations.ErrNotFound)

	got, err := svc.Cancel(ctx, r.ID, reservations.Actor{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, reservations.StatusCancelled, got.Status)

	_, err = svc.Cancel(ctx, r.ID, reservations.Actor{UserID: 1})
	require.NoError(t, err)

	// The slot is free again, for anyone.
	_, err = svc.Book(ctx, reservations.Booking{Request: req(2, 1, "19:00", 2)})
	require.NoError(t, err)
}

func TestAdminCancelsAnyReservation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, reservations.Table{ID: 1, Capacity: 4})
	r, err := svc.Book(ctx, reservations.Booking{Request: req(1, 1, "19:00", 2)})
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, r.ID, reservations.Actor{UserID: 50, Admin: true})
	require.NoError(t, err)
	assert.Equal(t, reservations.StatusCancelled, got.Status)
}

func TestAttachOrderLines(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, reservations.Table{ID: 1, Capacity: 4})
	r, err := svc.Book(ctx, reservations.Booking{Request: req(1, 1, "19:00", 2)})
	require.NoError(t, err)
	lines := []reservations.OrderLine{{Kind: reservations.KindDish, ItemID: 3, Quantity: 1}}

	assert.ErrorIs(t, svc.AttachOrderLines(ctx, r.ID, reservations.Actor{UserID: 2}, lines), reservations.ErrNotFound)
	require.NoError(t, svc.AttachOrderLines(ctx, r.ID, reservations.Actor{UserID: 1}, lines))
	assert.Len(t, store.Lines(r.ID), 1)

	_, err = svc.Cancel(ctx, r.ID, reservations.Actor{UserID: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.AttachOrderLines(ctx, r.ID, reservations.Actor{UserID: 1}, lines), reservations.ErrNotConfirmed)
}

func TestUpcomingAndStats(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, reservations.Table{ID: 1, Capacity: 4})
	today := time.Date(2025, time.October, 3, 0, 0, 0, 0, time.UTC)
	store.Seed(reservations.Reservation{UserID: 1, TableID: 1, Date: today.AddDate(0, 0, -1), Time: "19:00", PartySize: 2})
	store.Seed(reservations.Reservation{UserID: 1, TableID: 1, Date: today, Time: "19:00", PartySize: 2})
	store.Seed(reservations.Reservation{UserID: 1, TableID: 1, Date: oct4, Time: "19:00", PartySize: 2})
	store.Seed(reservations.Reservation{UserID: 1, TableID: 1, Date: oct4, Time: "21:00", PartySize: 2, Status: reservations.StatusCancelled})

	up, err := svc.Upcoming(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, up, 2)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, reservations.Stats{Total: 4, Confirmed: 3, Cancelled: 1, Today: 1, Upcoming: 1}, st)
}

func TestCalendar(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, reservations.Table{ID: 1, Capacity: 4}, reservations.Table{ID: 2, Capacity: 4})
	store.Seed(reservations.Reservation{UserID: 1, TableID: 1, Date: oct4, Time: "19:00", PartySize: 2})
	store.Seed(reservations.Reservation{UserID: 2, TableID: 2, Date: oct4, Time: "19:00", PartySize: 2})
	store.Seed(reservations.Reservation{UserID: 2, TableID: 2, Date: oct4, Time: "12:00", PartySize: 2})
	store.Seed(reservations.Reservation{UserID: 2, TableID: 2, Date: oct4.AddDate(0, 1, 0), Time: "12:00", PartySize: 2})

	m, err := svc.Calendar(ctx, 2025, time.October)
	require.NoError(t, err)
	require.Len(t, m.Days, 31)
	day := m.Days[3]
	assert.Equal(t, oct4, day.Date)
	assert.Equal(t, 3, day.Total)
	assert.Equal(t, 2, day.Slots["19:00"])
	assert.Zero(t, m.Days[4].Total)

	_, err = svc.Calendar(ctx, 2025, 13)
	assert.Error(t, err)
}

func ids(ts []reservations.Table) []int64 {
	out := make([]int64, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}
